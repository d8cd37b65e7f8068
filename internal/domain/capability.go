package domain

import "fmt"

// CapabilityType - абстрактная, платформенно-независимая возможность устройства.
type CapabilityType string

const (
	CapabilityCamera           CapabilityType = "camera"
	CapabilityMicrophone       CapabilityType = "microphone"
	CapabilityCameraMicrophone CapabilityType = "camera+microphone"
	CapabilityLocationCoarse   CapabilityType = "location-coarse"
	CapabilityLocationPrecise  CapabilityType = "location-precise"
	CapabilityLocation         CapabilityType = "location"
	CapabilityPhotos           CapabilityType = "photos"
	CapabilityVideos           CapabilityType = "videos"
	CapabilityAudioMedia       CapabilityType = "audio-media"
	CapabilityNotifications    CapabilityType = "notifications"
	CapabilityStorageRead      CapabilityType = "storage-read"
	CapabilityStorageWrite     CapabilityType = "storage-write"
	CapabilityHealthMonitoring CapabilityType = "health-monitoring"
	CapabilityTeleconsultVideo CapabilityType = "teleconsultation-video"
	CapabilityTeleconsultAudio CapabilityType = "teleconsultation-audio"
	CapabilityEmergencyCall    CapabilityType = "emergency-call"
	CapabilityHealthSharing    CapabilityType = "health-sharing"
)

var allCapabilities = []CapabilityType{
	CapabilityCamera,
	CapabilityMicrophone,
	CapabilityCameraMicrophone,
	CapabilityLocationCoarse,
	CapabilityLocationPrecise,
	CapabilityLocation,
	CapabilityPhotos,
	CapabilityVideos,
	CapabilityAudioMedia,
	CapabilityNotifications,
	CapabilityStorageRead,
	CapabilityStorageWrite,
	CapabilityHealthMonitoring,
	CapabilityTeleconsultVideo,
	CapabilityTeleconsultAudio,
	CapabilityEmergencyCall,
	CapabilityHealthSharing,
}

// Композитные возможности: ОС и обходы производителей трактуют их как одну единицу выдачи.
var components = map[CapabilityType][]CapabilityType{
	CapabilityCameraMicrophone: {CapabilityCamera, CapabilityMicrophone},
	CapabilityTeleconsultVideo: {CapabilityCamera, CapabilityMicrophone},
	CapabilityTeleconsultAudio: {CapabilityMicrophone},
	CapabilityEmergencyCall:    {CapabilityMicrophone, CapabilityLocationCoarse},
}

// AllCapabilities возвращает копию списка известных возможностей.
func AllCapabilities() []CapabilityType {
	out := make([]CapabilityType, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

// ParseCapability проверяет строку из внешнего мира (HTTP, Redis-сигнал).
func ParseCapability(s string) (CapabilityType, error) {
	for _, c := range allCapabilities {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// Components возвращает составные части композита (nil для простой возможности).
func (c CapabilityType) Components() []CapabilityType {
	parts := components[c]
	if len(parts) == 0 {
		return nil
	}
	out := make([]CapabilityType, len(parts))
	copy(out, parts)
	return out
}

func (c CapabilityType) IsComposite() bool {
	return len(components[c]) > 0
}

// IsLocation - возможности с двухуровневой точностью.
func (c CapabilityType) IsLocation() bool {
	switch c {
	case CapabilityLocation, CapabilityLocationCoarse, CapabilityLocationPrecise:
		return true
	}
	return false
}

// RequiresPrecision: только location-precise считает "грубую" выдачу частичной.
func (c CapabilityType) RequiresPrecision() bool {
	return c == CapabilityLocationPrecise
}
