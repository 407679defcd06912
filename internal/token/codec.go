package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Alphabet is the 31-symbol set session tokens are drawn from: uppercase
// letters and digits minus the visually ambiguous 0/O, 1/I/L.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length is the fixed session-token length.
const Length = 12

// MaxEntropyBits is the entropy of an ideal token: Length * log2(len(Alphabet)).
var MaxEntropyBits = float64(Length) * math.Log2(float64(len(Alphabet)))

const generateAttempts = 5

var (
	ErrEmpty      = errors.New("token is empty")
	ErrLength     = errors.New("token must be exactly 12 characters")
	ErrAlphabet   = errors.New("token contains characters outside the allowed alphabet")
	ErrLowEntropy = errors.New("token entropy below minimum threshold")
)

// Risk is the banded collision-risk classification of a token's entropy.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Assessment is the derived security view of a token. It is computed on
// demand and never stored.
type Assessment struct {
	EntropyBits   float64
	CollisionRisk Risk
	Valid         bool
	Err           error
}

// Policy holds the tunable entropy thresholds. These are deployment policy,
// not protocol constants.
type Policy struct {
	MinEntropyBits     float64
	LowRiskEntropyBits float64
}

func DefaultPolicy() Policy {
	return Policy{
		MinEntropyBits:     20,
		LowRiskEntropyBits: 36,
	}
}

// Codec generates, validates and digests session tokens.
type Codec struct {
	policy  Policy
	metrics *Metrics
}

func NewCodec(policy Policy, metrics *Metrics) *Codec {
	return &Codec{policy: policy, metrics: metrics}
}

// Generate draws a 12-character token from crypto/rand. Bytes are mapped to
// alphabet symbols with rejection sampling so no symbol is favored. A token
// whose assessment falls below the minimum-entropy floor is discarded and
// regenerated, up to a bounded number of attempts.
func (c *Codec) Generate() (string, error) {
	for attempt := 0; attempt < generateAttempts; attempt++ {
		tok, err := randomToken()
		if err != nil {
			return "", fmt.Errorf("failed to draw random token: %w", err)
		}

		assessment := c.assess(tok)
		if !assessment.Valid {
			continue
		}

		c.metrics.RecordGenerated(assessment.EntropyBits)
		return tok, nil
	}
	return "", fmt.Errorf("token generation failed after %d attempts: %w", generateAttempts, ErrLowEntropy)
}

func randomToken() (string, error) {
	// Largest multiple of len(Alphabet) that fits in a byte; bytes at or
	// above it are rejected to avoid modulo bias.
	limit := byte(256 - 256%len(Alphabet))

	var sb strings.Builder
	sb.Grow(Length)

	buf := make([]byte, Length*2)
	for sb.Len() < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
			if sb.Len() == Length {
				break
			}
		}
	}
	return sb.String(), nil
}

// Validate checks format and entropy. Any invalid result increments the
// validation-failure counter.
func (c *Codec) Validate(tok string) Assessment {
	assessment := c.assess(tok)
	if !assessment.Valid {
		c.metrics.RecordValidationFailure()
	}
	return assessment
}

func (c *Codec) assess(tok string) Assessment {
	if tok == "" {
		return Assessment{CollisionRisk: RiskHigh, Err: ErrEmpty}
	}
	if len(tok) != Length {
		return Assessment{CollisionRisk: RiskHigh, Err: ErrLength}
	}
	for i := 0; i < len(tok); i++ {
		if !strings.ContainsRune(Alphabet, rune(tok[i])) {
			return Assessment{CollisionRisk: RiskHigh, Err: ErrAlphabet}
		}
	}

	bits := EntropyBits(tok)
	risk := c.classifyRisk(bits)
	if bits < c.policy.MinEntropyBits {
		return Assessment{EntropyBits: bits, CollisionRisk: risk, Err: ErrLowEntropy}
	}

	return Assessment{EntropyBits: bits, CollisionRisk: risk, Valid: true}
}

func (c *Codec) classifyRisk(bits float64) Risk {
	switch {
	case bits >= c.policy.LowRiskEntropyBits:
		return RiskLow
	case bits >= c.policy.MinEntropyBits:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// EntropyBits is a Shannon estimate over the token's own character-frequency
// distribution, scaled by token length. Heavy repetition scores low; a token
// using many distinct symbols scores high.
func EntropyBits(tok string) float64 {
	if tok == "" {
		return 0
	}

	counts := make(map[byte]int, len(tok))
	for i := 0; i < len(tok); i++ {
		counts[tok[i]]++
	}

	n := float64(len(tok))
	var perChar float64
	for _, count := range counts {
		p := float64(count) / n
		perChar -= p * math.Log2(p)
	}
	return perChar * n
}

// Sanitize trims surrounding whitespace, upper-cases, and validates. It is
// the single normalization point for user or radio input; callers must not
// treat input as a token unless it passes here.
func (c *Codec) Sanitize(input string) (string, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(input))
	if assessment := c.Validate(cleaned); !assessment.Valid {
		return "", false
	}
	return cleaned, true
}

// Hash returns the SHA-256 hex digest of a valid token, for audit trails and
// logs where the raw token must not appear. Invalid tokens are rejected.
func (c *Codec) Hash(tok string) (string, error) {
	if assessment := c.Validate(tok); !assessment.Valid {
		return "", fmt.Errorf("refusing to hash invalid token: %w", assessment.Err)
	}
	sum := sha256.Sum256([]byte(tok))
	return fmt.Sprintf("%x", sum), nil
}

// LogDigest hashes arbitrary (possibly malformed) input for log lines. Raw
// rejected input never appears in logs; this digest does.
func LogDigest(input string) string {
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", sum[:8])
}

// EncodeToMinor compresses a token into the 16-bit minor field of the radio
// payload: the first two bytes of its SHA-256 digest, big-endian. It is a
// pure, unsalted function so broadcaster and scanner derive the same value
// independently.
//
// This is a lossy digest, not encryption: distinct tokens can collide in the
// 16-bit space. Resolution re-confirms the full token against the live
// session list; the digest alone is never proof of identity.
func EncodeToMinor(tok string) uint16 {
	sum := sha256.Sum256([]byte(tok))
	return binary.BigEndian.Uint16(sum[:2])
}
