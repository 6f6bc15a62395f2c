package leads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

func TestFetchSample_HostAllowList(t *testing.T) {
	s := NewService(nil, nil, config.LeadsConfig{DownloadHosts: []string{"utfs.io"}}, "https://wondernook.in")

	assert.True(t, s.allowed["utfs.io"])
	assert.True(t, s.allowed["wondernook.in"])

	for _, target := range []string{
		"ftp://utfs.io/f/launch.pdf",
		"https://evil.example.com/launch.pdf",
		"https://utfs.io.evil.example.com/launch.pdf",
		"://broken",
	} {
		_, err := s.FetchSample(context.Background(), target)
		assert.ErrorIs(t, err, ErrDownloadNotAllowed, target)
	}
}

func TestSampleRequestInput_Sanitized(t *testing.T) {
	in := SampleRequestInput{
		Name:      "  Asha Rao ",
		Email:     " ASHA@Example.com",
		ContactNo: "+91 98765 43210",
	}.sanitized()

	assert.Equal(t, "Asha Rao", in.Name)
	assert.Equal(t, "asha@example.com", in.Email)
	assert.Equal(t, "+919876543210", in.ContactNo)
}
