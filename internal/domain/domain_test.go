package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_Validate(t *testing.T) {
	fb := &FallbackStrategy{Mode: FallbackLimited, Description: "Text chat only"}

	cases := []struct {
		name    string
		rc      RequestContext
		wantErr bool
	}{
		{name: "valid", rc: RequestContext{Feature: "chat", Priority: PriorityLow, FallbackStrategy: fb}},
		{name: "empty priority is allowed", rc: RequestContext{FallbackStrategy: fb}},
		{name: "missing fallback", rc: RequestContext{Priority: PriorityCritical}, wantErr: true},
		{name: "missing mode", rc: RequestContext{FallbackStrategy: &FallbackStrategy{Description: "x"}}, wantErr: true},
		{name: "unknown mode", rc: RequestContext{FallbackStrategy: &FallbackStrategy{Mode: "magic", Description: "x"}}, wantErr: true},
		{name: "missing description", rc: RequestContext{FallbackStrategy: &FallbackStrategy{Mode: FallbackDisabled}}, wantErr: true},
		{name: "unknown priority", rc: RequestContext{Priority: "urgent", FallbackStrategy: fb}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rc.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidContext)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequestContext_IsEmergency(t *testing.T) {
	assert.True(t, RequestContext{Priority: PriorityCritical}.IsEmergency())
	assert.True(t, RequestContext{MedicalContext: &MedicalContext{Urgency: UrgencyEmergency}}.IsEmergency())
	assert.False(t, RequestContext{Priority: PriorityImportant, MedicalContext: &MedicalContext{Urgency: UrgencyUrgent}}.IsEmergency())
}

func TestClassify(t *testing.T) {
	transient := &TransientPlatformError{Primitive: "android.permission.CAMERA", Cause: errors.New("oem security layer")}

	cases := []struct {
		err  error
		want ErrorTag
	}{
		{nil, TagNone},
		{ErrTimeout, TagTimeout},
		{context.DeadlineExceeded, TagTimeout},
		{fmt.Errorf("request: %w", transient), TagTransient},
		{ErrPlatformUnavailable, TagPlatformUnavailable},
		{context.Canceled, TagCanceled},
		{errors.New("boom"), TagPlatformError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}

	assert.True(t, IsRetriable(transient))
	assert.True(t, IsRetriable(ErrTimeout))
	assert.False(t, IsRetriable(ErrPlatformUnavailable))
	assert.ErrorContains(t, transient, "oem security layer")
}

func TestCapability(t *testing.T) {
	c, err := ParseCapability("teleconsultation-video")
	require.NoError(t, err)
	assert.True(t, c.IsComposite())
	assert.Equal(t, []CapabilityType{CapabilityCamera, CapabilityMicrophone}, c.Components())

	_, err = ParseCapability("Camera")
	assert.Error(t, err)

	assert.Nil(t, CapabilityCamera.Components())
	assert.True(t, CapabilityLocationCoarse.IsLocation())
	assert.True(t, CapabilityLocationPrecise.RequiresPrecision())
	assert.False(t, CapabilityLocation.RequiresPrecision())

	// Копии не протекают в общую таблицу
	parts := CapabilityEmergencyCall.Components()
	parts[0] = CapabilityPhotos
	assert.Equal(t, CapabilityMicrophone, CapabilityEmergencyCall.Components()[0])
	all := AllCapabilities()
	all[0] = "x"
	assert.Equal(t, CapabilityCamera, AllCapabilities()[0])
}

func TestCapabilityResult_Clone(t *testing.T) {
	r := CapabilityResult{
		Status:          StatusLimited,
		BatchResults:    map[CapabilityType]CapabilityStatus{CapabilityCamera: StatusGranted},
		DegradationPath: &FallbackStrategy{Mode: FallbackLimited, Description: "x", Limitations: []string{"a"}},
	}
	c := r.WithSource(SourceCache)
	c.BatchResults[CapabilityCamera] = StatusDenied
	c.DegradationPath.Limitations[0] = "b"

	assert.Equal(t, StatusGranted, r.BatchResults[CapabilityCamera])
	assert.Equal(t, "a", r.DegradationPath.Limitations[0])
	assert.Equal(t, SourceCache, c.Metadata.Source)
	assert.Empty(t, r.Metadata.Source)
	assert.Equal(t, 3, r.WithRetryCount(3).Metadata.RetryCount)

	assert.True(t, CapabilityResult{Status: StatusDenied, CanAskAgain: true}.IsSoftDenial())
	assert.False(t, CapabilityResult{Status: StatusDenied}.IsSoftDenial())
}

func TestDeviceProfile(t *testing.T) {
	p := DeviceProfile{
		OSFamily: OSAndroid, OSMajor: 14, APILevel: 34, Rule: "samsung", Mode: ModeGaming,
		Workarounds: map[WorkaroundFlag]struct{}{WorkaroundThrottlePrompts: {}, WorkaroundPreRequestDelay: {}},
	}
	assert.Equal(t, "samsung/gaming", p.Tier())
	assert.Equal(t, 34, p.VersionGate())
	assert.True(t, p.Has(WorkaroundThrottlePrompts))
	assert.False(t, p.Has(WorkaroundVerifyAfterGrant))
	assert.Equal(t, []string{"pre-request-delay", "throttle-prompts"}, p.WorkaroundList())

	ios := DeviceProfile{OSFamily: OSIOS, OSMajor: 17, Rule: "apple"}
	assert.Equal(t, "apple", ios.Tier())
	assert.Equal(t, 17, ios.VersionGate())
}
