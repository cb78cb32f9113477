package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMintFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^FO-[A-Z0-9]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := Mint()
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	// 100 mints colliding would mean the generator is broken
	assert.Len(t, seen, 100)
}

func TestEmbedAndExtract(t *testing.T) {
	code := Mint()
	subject := Embed("Rate confirmation Hamburg", code)
	assert.Equal(t, "Rate confirmation Hamburg ["+code+"]", subject)
	assert.Equal(t, code, Extract(subject))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{
			name:    "plain embedded code",
			subject: "Booking update [FO-A1B2C3D4]",
			want:    "FO-A1B2C3D4",
		},
		{
			name:    "survives reply prefix",
			subject: "Re: Re: Booking update [FO-A1B2C3D4]",
			want:    "FO-A1B2C3D4",
		},
		{
			name:    "survives forward decoration",
			subject: "Fwd: [EXTERNAL] Booking update [FO-XYZ98765] - action needed",
			want:    "FO-XYZ98765",
		},
		{
			name:    "first match wins",
			subject: "[FO-AAAAAAAA] vs [FO-BBBBBBBB]",
			want:    "FO-AAAAAAAA",
		},
		{
			name:    "no code",
			subject: "Quarterly rates overview",
			want:    "",
		},
		{
			name:    "code without brackets is not a match",
			subject: "Ref FO-A1B2C3D4 attached",
			want:    "",
		},
		{
			name:    "lowercase is not a match",
			subject: "update [fo-a1b2c3d4]",
			want:    "",
		},
		{
			name:    "wrong length is not a match",
			subject: "update [FO-ABC123]",
			want:    "",
		},
		{
			name:    "empty subject",
			subject: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.subject))
		})
	}
}
