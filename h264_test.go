package rtcencoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestH264ProfileLevelID(t *testing.T) {
	for _, tc := range []struct {
		s  string
		id H264ProfileLevelID
	}{
		{"42e01f", H264ProfileLevelID{H264ProfileConstrainedBaseline, H264Level3_1}},
		{"42001f", H264ProfileLevelID{H264ProfileBaseline, H264Level3_1}},
		{"4d0028", H264ProfileLevelID{H264ProfileMain, H264Level4}},
		{"640c34", H264ProfileLevelID{H264ProfileConstrainedHigh, H264Level5_2}},
		{"640032", H264ProfileLevelID{H264ProfileHigh, H264Level5}},
		{"f4001f", H264ProfileLevelID{H264ProfilePredictiveHigh444, H264Level3_1}},
		{"42f00b", H264ProfileLevelID{H264ProfileConstrainedBaseline, H264Level1b}},
		{"42100b", H264ProfileLevelID{H264ProfileBaseline, H264Level1b}},
		{"4d100b", H264ProfileLevelID{H264ProfileMain, H264Level1b}},
	} {
		t.Run(tc.s, func(t *testing.T) {
			id, err := ParseH264ProfileLevelID(tc.s)
			require.NoError(t, err)
			assert.Equal(t, tc.id, id)
			assert.Equal(t, tc.s, id.String())
		})
	}
}

func TestH264ProfileLevelIDParseQuirks(t *testing.T) {
	id, err := ParseH264ProfileLevelID("42E01F")
	require.NoError(t, err)
	assert.Equal(t, H264ProfileConstrainedBaseline, id.Profile)

	// level_idc 11 without constraint_set3 is level 1.1, not 1b
	id, err = ParseH264ProfileLevelID("42e00b")
	require.NoError(t, err)
	assert.Equal(t, H264Level1_1, id.Level)

	// constraint_set1 makes Main constrained baseline
	id, err = ParseH264ProfileLevelID("4de01f")
	require.NoError(t, err)
	assert.Equal(t, H264ProfileConstrainedBaseline, id.Profile)

	for _, s := range []string{"", "42e0", "42e01f00", "zzzzzz", "42e000", "42e0ff", "ff001f"} {
		_, err := ParseH264ProfileLevelID(s)
		assert.Error(t, err, s)
	}

	_, err = H264ProfileLevelID{Profile: H264ProfileHigh, Level: H264Level1b}.Format()
	assert.Error(t, err)
	_, err = H264ProfileLevelID{Profile: H264ProfileHigh, Level: H264Level(99)}.Format()
	assert.Error(t, err)
}

func TestDefaultH264Formats(t *testing.T) {
	formats := DefaultH264Formats()
	require.Len(t, formats, 4)

	expected := []struct {
		profileLevelID    string
		packetizationMode string
	}{
		{"42001f", "1"},
		{"42001f", "0"},
		{"42e01f", "1"},
		{"42e01f", "0"},
	}
	for idx, format := range formats {
		assert.Equal(t, CodecNameH264, format.Name)
		assert.Equal(t, map[string]string{
			FmtpKeyH264ProfileLevelID:        expected[idx].profileLevelID,
			FmtpKeyH264LevelAsymmetryAllowed: "1",
			FmtpKeyH264PacketizationMode:     expected[idx].packetizationMode,
		}, format.Parameters)
	}
}

func TestH264ProfileLevelIDFromFormat(t *testing.T) {
	id, err := H264ProfileLevelIDFromFormat(NewSDPVideoFormat(CodecNameH264, nil))
	require.NoError(t, err)
	assert.Equal(t, H264ProfileLevelID{H264ProfileConstrainedBaseline, H264Level3_1}, id)
}
