package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(101, 202, "2024-03-01T10:00:00Z", "Quick question")
	b := Fingerprint(101, 202, "2024-03-01T10:00:00Z", "Quick question")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestFingerprintSensitiveToEachField(t *testing.T) {
	base := Fingerprint(101, 202, "2024-03-01T10:00:00Z", "Quick question")

	assert.NotEqual(t, base, Fingerprint(102, 202, "2024-03-01T10:00:00Z", "Quick question"))
	assert.NotEqual(t, base, Fingerprint(101, 203, "2024-03-01T10:00:00Z", "Quick question"))
	assert.NotEqual(t, base, Fingerprint(101, 202, "2024-03-01T10:00:01Z", "Quick question"))
	assert.NotEqual(t, base, Fingerprint(101, 202, "2024-03-01T10:00:00Z", "Other subject"))
}

func TestFingerprintEmptySubject(t *testing.T) {
	a := Fingerprint(101, 202, "2024-03-01T10:00:00Z", "")
	b := Fingerprint(101, 202, "2024-03-01T10:00:00Z", "")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}
