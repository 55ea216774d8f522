package types

import "fmt"

// Sentinels for a document that has never been written. They mirror the
// unassigned markers of the backing store so callers can tell "no precondition"
// apart from a real revision.
const (
	UnassignedSeqNo       int64 = -2
	UnassignedPrimaryTerm int64 = 0
)

// Version is the (sequence number, primary term) pair identifying one revision
// of a document. It is assigned by the store and strictly advances per id.
// Callers treat it as an opaque CAS token; the core never fabricates one.
type Version struct {
	SeqNo       int64 `json:"seq_no"`
	PrimaryTerm int64 `json:"primary_term"`
}

func UnassignedVersion() Version {
	return Version{SeqNo: UnassignedSeqNo, PrimaryTerm: UnassignedPrimaryTerm}
}

// Assigned reports whether v names a real revision, i.e. can serve as an
// update precondition.
func (v Version) Assigned() bool {
	return v.SeqNo != UnassignedSeqNo && v.PrimaryTerm != UnassignedPrimaryTerm
}

func (v Version) String() string {
	return fmt.Sprintf("%d/%d", v.SeqNo, v.PrimaryTerm)
}
