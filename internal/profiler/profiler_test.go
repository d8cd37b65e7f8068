package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/capnego/internal/domain"
)

func TestProfile_RuleTable(t *testing.T) {
	p := New(nil, nil)

	tests := []struct {
		name     string
		info     domain.DeviceInfo
		rule     string
		timeout  time.Duration
		batch    domain.BatchStrategy
		apiLevel int
	}{
		{
			name:     "samsung phone",
			info:     domain.DeviceInfo{Manufacturer: "Samsung", Model: "SM-S918B", OSFamily: domain.OSAndroid, OSVersion: "14", APILevel: 34},
			rule:     "samsung",
			timeout:  25 * time.Second,
			batch:    domain.BatchSequential,
			apiLevel: 34,
		},
		{
			name:     "samsung foldable wins over plain samsung",
			info:     domain.DeviceInfo{Manufacturer: "samsung", Model: "SM-F946B", OSFamily: domain.OSAndroid, OSVersion: "13"},
			rule:     "samsung-foldable",
			timeout:  30 * time.Second,
			batch:    domain.BatchSequential,
			apiLevel: 33,
		},
		{
			name:     "redmi maps to miui",
			info:     domain.DeviceInfo{Manufacturer: " Redmi ", Model: "Note 12", OSFamily: domain.OSAndroid, OSVersion: "12", APILevel: 31},
			rule:     "xiaomi-miui",
			timeout:  30 * time.Second,
			batch:    domain.BatchSequential,
			apiLevel: 31,
		},
		{
			name:    "iphone",
			info:    domain.DeviceInfo{Manufacturer: "Apple", Model: "iPhone15,2", OSFamily: domain.OSIOS, OSVersion: "17.4.1"},
			rule:    "apple",
			timeout: 15 * time.Second,
			batch:   domain.BatchParallel,
		},
		{
			name:     "unknown vendor falls back to default",
			info:     domain.DeviceInfo{Manufacturer: "Fairphone", Model: "FP5", OSFamily: domain.OSAndroid, OSVersion: "13"},
			rule:     "default",
			timeout:  20 * time.Second,
			batch:    domain.BatchParallel,
			apiLevel: 33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prof := p.Profile(tt.info)
			assert.Equal(t, tt.rule, prof.Rule)
			assert.Equal(t, tt.timeout, prof.Timeout)
			assert.Equal(t, tt.batch, prof.BatchStrategy)
			assert.Equal(t, tt.apiLevel, prof.APILevel)
			assert.Equal(t, domain.ModeStandard, prof.Mode)
		})
	}
}

func TestProfile_ExtraRulesTakePriority(t *testing.T) {
	p := New([]Rule{{
		Name:          "lab-samsung",
		Manufacturers: []string{"samsung"},
		Timeout:       5 * time.Second,
		Batch:         domain.BatchParallel,
	}}, nil)

	prof := p.Profile(domain.DeviceInfo{Manufacturer: "Samsung", Model: "SM-S918B", OSFamily: domain.OSAndroid, OSVersion: "14"})
	assert.Equal(t, "lab-samsung", prof.Rule)
	assert.Equal(t, 5*time.Second, prof.Timeout)
}

func TestProfile_DeviceModes(t *testing.T) {
	p := New(nil, nil)

	desktop := p.Profile(domain.DeviceInfo{Manufacturer: "Samsung", Model: "SM-X910 DeX", OSFamily: domain.OSAndroid, OSVersion: "14"})
	assert.Equal(t, domain.ModeDesktopDocking, desktop.Mode)
	assert.Equal(t, 37500*time.Millisecond, desktop.Timeout)
	assert.Equal(t, "samsung/desktop-docking", desktop.Tier())

	gaming := p.Profile(domain.DeviceInfo{Manufacturer: "Asus", Model: "ROG Phone 8", OSFamily: domain.OSAndroid, OSVersion: "14"})
	assert.Equal(t, domain.ModeGaming, gaming.Mode)
	assert.Equal(t, 12*time.Second, gaming.Timeout)

	fast := New([]Rule{{Name: "fast", Manufacturers: []string{"asus"}, Timeout: 10 * time.Second}}, nil).
		Profile(domain.DeviceInfo{Manufacturer: "Asus", Model: "ROG Phone 8", OSFamily: domain.OSAndroid, OSVersion: "14"})
	assert.Equal(t, minGamingTimeout, fast.Timeout, "10s * 0.6 is clamped to the floor")

	emu := p.Profile(domain.DeviceInfo{Manufacturer: "Xiaomi", Model: "sdk_gphone64", OSFamily: domain.OSAndroid, OSVersion: "14", IsEmulator: true})
	assert.Equal(t, domain.ModeEmulator, emu.Mode)
	assert.Equal(t, domain.BatchParallel, emu.BatchStrategy)
	assert.Empty(t, emu.WorkaroundList())
}

func TestHasHint_WholeWords(t *testing.T) {
	cases := []struct {
		model string
		hints []string
		want  bool
	}{
		{"ROG Phone 8", gamingHints, true},
		{"RedMagic 9 Pro", gamingHints, true},
		{"Red Magic 8S", gamingHints, true},
		{"Black-Shark 5", gamingHints, true},
		{"Progress 5", gamingHints, false},
		{"Rogue X", gamingHints, false},
		{"Blackshark", gamingHints, false},
		{"SM-X910 DeX", desktopHints, true},
		{"Index 10", desktopHints, false},
		{"Dexter Pad", desktopHints, false},
		{"", desktopHints, false},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			assert.Equal(t, tc.want, hasHint(tc.model, tc.hints))
		})
	}

	p := New(nil, nil)
	prof := p.Profile(domain.DeviceInfo{Manufacturer: "Motorola", Model: "Progress 5", OSFamily: domain.OSAndroid, OSVersion: "14"})
	assert.Equal(t, domain.ModeStandard, prof.Mode)
}

func TestOptions(t *testing.T) {
	p := New(nil, nil)
	prof := p.Profile(domain.DeviceInfo{Manufacturer: "Xiaomi", Model: "13T", OSFamily: domain.OSAndroid, OSVersion: "14"})
	require.True(t, prof.Has(domain.WorkaroundExtendedRationale))

	rc := domain.RequestContext{
		Feature:            "video-visit",
		Priority:           domain.PriorityImportant,
		EducationalContent: &domain.EducationalContent{Description: "We need the camera for the visit"},
	}
	opts := Options(prof, domain.CapabilityLocationPrecise, rc)
	assert.Equal(t, prof.Rationale, opts.Rationale, "manufacturer rationale wins on extended-rationale devices")
	assert.Equal(t, 400*time.Millisecond, opts.PreRequestDelay)
	assert.True(t, opts.Sequential)
	assert.True(t, opts.RequirePrecise)
	assert.True(t, opts.VerifyAfterGrant)
	assert.True(t, opts.ThrottlePrompts)

	rc.Priority = domain.PriorityCritical
	opts = Options(prof, domain.CapabilityLocation, rc)
	assert.Zero(t, opts.PreRequestDelay, "emergency requests are never delayed")
	assert.False(t, opts.RequirePrecise)

	pixel := p.Profile(domain.DeviceInfo{Manufacturer: "Google", Model: "Pixel 8", OSFamily: domain.OSAndroid, OSVersion: "14"})
	opts = Options(pixel, domain.CapabilityCamera, domain.RequestContext{
		EducationalContent: &domain.EducationalContent{Description: "camera for scans"},
	})
	assert.Equal(t, "camera for scans", opts.Rationale)
	assert.False(t, opts.Sequential)
}

func TestMajorVersion(t *testing.T) {
	assert.Equal(t, 17, majorVersion("17.4.1"))
	assert.Equal(t, 14, majorVersion("14"))
	assert.Equal(t, 0, majorVersion("beta"))
}
