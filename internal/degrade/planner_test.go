package degrade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/capnego/internal/domain"
)

var audioOnly = &domain.FallbackStrategy{
	Mode:                domain.FallbackAlternative,
	Description:         "Continue as an audio call",
	Limitations:         []string{"no video"},
	AlternativeApproach: "audio-only consultation",
}

func TestPlan_EchoesCallerStrategy(t *testing.T) {
	r := domain.CapabilityResult{Status: domain.StatusDenied, CanAskAgain: true}

	fs, ok := Plan(domain.CapabilityCamera, r, audioOnly)
	require.True(t, ok)
	assert.Equal(t, *audioOnly, fs)

	fs.Limitations[0] = "changed"
	assert.Equal(t, "no video", audioOnly.Limitations[0])
}

func TestPlan_GrantedHasNoPath(t *testing.T) {
	_, ok := Plan(domain.CapabilityCamera, domain.CapabilityResult{Status: domain.StatusGranted}, audioOnly)
	assert.False(t, ok)
}

func TestPlan_ApproximateLocation(t *testing.T) {
	fallback := &domain.FallbackStrategy{
		Mode:                domain.FallbackDisabled,
		Description:         "Location features disabled",
		AlternativeApproach: "enter address manually",
	}
	limited := domain.CapabilityResult{Status: domain.StatusLimited, Accuracy: domain.AccuracyApproximate, CanAskAgain: true}

	fs, ok := Plan(domain.CapabilityLocationPrecise, limited, fallback)
	require.True(t, ok)
	assert.Equal(t, domain.FallbackLimited, fs.Mode)
	assert.NotEqual(t, fallback.Description, fs.Description)
	assert.Equal(t, "enter address manually", fs.AlternativeApproach)

	denied := domain.CapabilityResult{Status: domain.StatusDenied, CanAskAgain: true}
	fs, ok = Plan(domain.CapabilityLocationPrecise, denied, fallback)
	require.True(t, ok)
	assert.Equal(t, fallback.Description, fs.Description)
}

func TestAttach(t *testing.T) {
	r := domain.CapabilityResult{Status: domain.StatusBlocked}
	out := Attach(domain.CapabilityMicrophone, r, audioOnly)
	require.NotNil(t, out.DegradationPath)
	assert.True(t, out.FallbackAvailable)
	assert.Nil(t, r.DegradationPath)

	disabled := &domain.FallbackStrategy{Mode: domain.FallbackDisabled, Description: "feature off"}
	out = Attach(domain.CapabilityMicrophone, r, disabled)
	assert.False(t, out.FallbackAvailable)

	out = Attach(domain.CapabilityMicrophone, domain.CapabilityResult{Status: domain.StatusGranted}, audioOnly)
	assert.Nil(t, out.DegradationPath)
}
