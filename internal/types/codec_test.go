package types

import "errors"

func (s *UnitTestSuite) TestLRONCodecRoundTrip() {
	c := sampleLRONConfig()
	data, err := EncodeLRONConfig(c)
	s.NoError(err)
	s.NotEmpty(data)

	got, err := DecodeLRONConfig(data)
	s.NoError(err)
	s.Equal(c, got)
}

func (s *UnitTestSuite) TestSMPolicyCodecRoundTrip() {
	p := sampleSMPolicy()
	data, err := EncodeSMPolicy(p)
	s.NoError(err)

	got, err := DecodeSMPolicy(data)
	s.NoError(err)
	s.Equal(p, got)
}

func (s *UnitTestSuite) TestEncodeRejectsInvalid() {
	c := sampleLRONConfig()
	c.Channels = nil
	_, err := EncodeLRONConfig(c)
	s.True(errors.Is(err, ErrInvalidDocument))

	p := sampleSMPolicy()
	p.Name = ""
	_, err = EncodeSMPolicy(p)
	s.True(errors.Is(err, ErrInvalidDocument))
}

func (s *UnitTestSuite) TestDecodeCorruptStream() {
	_, err := DecodeLRONConfig([]byte("not a zstd frame"))
	s.True(errors.Is(err, ErrInvalidDocument))

	_, err = DecodeSMPolicy(nil)
	s.True(errors.Is(err, ErrInvalidDocument))
}
