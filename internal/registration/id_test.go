package registration

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGenerator(prefix string) *Generator {
	g := NewGenerator(prefix)
	g.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local) }
	return g
}

func TestGeneratorFormatsEveryKind(t *testing.T) {
	g := fixedGenerator("RWT")
	cases := map[Kind]string{
		KindInternship: "INT",
		KindJob:        "JOB",
		KindInquiry:    "INQ",
		KindDrive:      "DRV",
	}
	for kind, code := range cases {
		id, err := g.Next(kind)
		require.NoError(t, err)
		assert.Regexp(t, `^RWT-`+code+`-250101-[0-9A-Z]{4}$`, id)
	}
}

func TestGeneratorUnknownKindFallsBackToInquiry(t *testing.T) {
	g := fixedGenerator("RWT")

	id, err := g.Next(ParseKind("volunteer"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "RWT-INQ-250101-"), id)

	id, err = g.Next(Kind("bogus"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "RWT-INQ-"), id)
}

func TestGeneratorPrefix(t *testing.T) {
	id, err := fixedGenerator("  ").Next(KindJob)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, DefaultIDPrefix+"-JOB-"), id)

	id, err = fixedGenerator("acme").Next(KindJob)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "ACME-JOB-"), id)
}

func TestGeneratorRandomSourceFailure(t *testing.T) {
	g := fixedGenerator("RWT")
	g.rand = strings.NewReader("")
	_, err := g.Next(KindJob)
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindInternship, ParseKind(" Internship "))
	assert.Equal(t, KindDrive, ParseKind("drive"))
	assert.Equal(t, KindInquiry, ParseKind(""))
	assert.Equal(t, KindInquiry, ParseKind("partnership"))
}
