package ase

import "fmt"

// Revision identifies the layout of a master server reply.
type Revision uint8

// Known reply layouts.
const (
	// RevisionUnknown is any revision tag this package cannot decode.
	// It decodes to an empty result.
	RevisionUnknown Revision = iota
	// RevisionLegacy carries address and port pairs only.
	RevisionLegacy
	// RevisionExtended carries length-framed, flag-driven records (tag 2).
	RevisionExtended
)

// Revision tags found after a zero count in the reply header.
const (
	tagLegacy   = 0
	tagExtended = 2
)

func (r Revision) String() string {
	switch r {
	case RevisionLegacy:
		return "legacy"
	case RevisionExtended:
		return "extended"
	case RevisionUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Revision(%d)", uint8(r))
	}
}

// decode runs the grammar of the revision over the rest of the reply.
func (r Revision) decode(d *decoder) error {
	switch r {
	case RevisionLegacy:
		return d.legacy()
	case RevisionExtended:
		return d.extended()
	default:
		return nil
	}
}

// revisionFromTag maps the header tag to a revision.
func revisionFromTag(tag uint16) Revision {
	switch tag {
	case tagLegacy:
		return RevisionLegacy
	case tagExtended:
		return RevisionExtended
	default:
		return RevisionUnknown
	}
}
