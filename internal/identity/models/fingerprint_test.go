package models

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type FingerprintSuite struct {
	suite.Suite
	base DeviceAttributes
}

func TestFingerprintSuite(t *testing.T) {
	suite.Run(t, new(FingerprintSuite))
}

func (s *FingerprintSuite) SetupTest() {
	s.base = DeviceAttributes{
		UserAgent:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		Platform:         "MacIntel",
		Timezone:         "Europe/Berlin",
		Language:         "en-US",
		ScreenResolution: "2560x1440",
		Entropy:          "canvas:a91f",
	}
}

func (s *FingerprintSuite) TestHashStability() {
	s.Run("same attributes produce same hash", func() {
		a := NewDeviceFingerprint(s.base)
		b := NewDeviceFingerprint(s.base)
		s.Equal(a.Hash, b.Hash)
		s.Len(a.Hash, 64)
	})

	s.Run("any attribute change produces different hash", func() {
		a := NewDeviceFingerprint(s.base)
		changed := s.base
		changed.ScreenResolution = "1920x1080"
		b := NewDeviceFingerprint(changed)
		s.NotEqual(a.Hash, b.Hash)
	})

	s.Run("generates opaque id when absent", func() {
		fp := NewDeviceFingerprint(s.base)
		s.NotEmpty(fp.ID)
	})
}

func (s *FingerprintSuite) TestMatches() {
	a := NewDeviceFingerprint(s.base)

	s.Run("strict requires full hash equality", func() {
		drifted := s.base
		drifted.Language = "de-DE"
		b := NewDeviceFingerprint(drifted)
		s.False(a.Matches(b, true))
		s.True(a.Matches(NewDeviceFingerprint(s.base), true))
	})

	s.Run("loose tolerates sub-attribute drift", func() {
		drifted := s.base
		drifted.Language = "de-DE"
		drifted.ScreenResolution = "1920x1080"
		drifted.Entropy = "canvas:ffff"
		b := NewDeviceFingerprint(drifted)
		s.True(a.Matches(b, false))
	})

	s.Run("loose rejects timezone change", func() {
		moved := s.base
		moved.Timezone = "America/New_York"
		b := NewDeviceFingerprint(moved)
		s.False(a.Matches(b, false))
	})
}

func (s *FingerprintSuite) TestDisplayName() {
	fp := NewDeviceFingerprint(s.base)
	name := fp.DisplayName()
	s.Contains(name, "Chrome")

	empty := NewDeviceFingerprint(DeviceAttributes{})
	s.Equal("Unknown Device", empty.DisplayName())
}
