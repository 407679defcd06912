package beacon

import (
	"fmt"

	"github.com/diagnosis/attendance-beacon/internal/token"
)

// OrgCode is the major field of the radio payload. Zero means unknown and is
// never broadcast for a real session.
type OrgCode uint16

const OrgUnknown OrgCode = 0

// Payload is the two-field advertisement actually broadcast: the
// organization code and a 16-bit digest of the session token.
type Payload struct {
	Major OrgCode `json:"major"`
	Minor uint16  `json:"minor"`
}

// Directory is the closed slug-to-code table for this deployment. The table
// is small and explicit on purpose; extending it means adding a code here,
// not open-ended string matching.
type Directory struct {
	bySlug map[string]OrgCode
}

func NewDirectory() *Directory {
	return &Directory{
		bySlug: map[string]OrgCode{
			"nhs":  1,
			"njhs": 2,
		},
	}
}

// Code resolves a slug to its organization code, OrgUnknown if unmapped.
func (d *Directory) Code(slug string) OrgCode {
	return d.bySlug[slug]
}

// Packer maps session tokens to radio payloads and pre-filters received
// advertisements.
type Packer struct {
	codec *token.Codec
	dir   *Directory
}

func NewPacker(codec *token.Codec, dir *Directory) *Packer {
	return &Packer{codec: codec, dir: dir}
}

// Pack builds the broadcast payload for a session token. It fails for
// tokens that do not validate and for slugs outside the directory.
func (p *Packer) Pack(tok, orgSlug string) (Payload, error) {
	if assessment := p.codec.Validate(tok); !assessment.Valid {
		return Payload{}, fmt.Errorf("cannot pack invalid token: %w", assessment.Err)
	}

	code := p.dir.Code(orgSlug)
	if code == OrgUnknown {
		return Payload{}, fmt.Errorf("unknown organization %q", orgSlug)
	}

	return Payload{Major: code, Minor: token.EncodeToMinor(tok)}, nil
}

// ValidatePayload is the cheap pre-filter a scanner applies to every
// received advertisement before any resolution work. It rejects payloads
// broadcast by, or seemingly for, another organization without needing the
// token at all. Major and minor arrive as plain ints from the radio layer.
func (p *Packer) ValidatePayload(major, minor int, orgSlug string) bool {
	if minor < 0 || minor > 0xFFFF {
		return false
	}
	code := p.dir.Code(orgSlug)
	if code == OrgUnknown {
		return false
	}
	return OrgCode(major) == code
}
