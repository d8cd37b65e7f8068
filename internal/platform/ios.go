package platform

import (
	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

// Разрешения iOS (ключи native-слоя).
const (
	IOSCamera               Primitive = "ios.camera"
	IOSMicrophone           Primitive = "ios.microphone"
	IOSLocationWhenInUse    Primitive = "ios.locationWhenInUse"
	IOSLocationFullAccuracy Primitive = "ios.locationFullAccuracy"
	IOSPhotoLibrary         Primitive = "ios.photoLibrary"
	IOSMediaLibrary         Primitive = "ios.mediaLibrary"
	IOSNotifications        Primitive = "ios.notifications"
	IOSHealthKit            Primitive = "ios.healthKit"
)

// С iOS 14 точность геолокации выдаётся отдельно (full accuracy).
const iosPreciseLocationMajor = 14

func iosChain() []versionGate {
	return []versionGate{
		{
			// Контейнер приложения доступен без разрешений.
			name:    "app-container",
			applies: always,
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityStorageRead, domain.CapabilityStorageWrite:
					return Mapping{AutoGrant: true}, true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "precise-location",
			applies: since(iosPreciseLocationMajor),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityLocation, domain.CapabilityLocationPrecise:
					return Mapping{
						Primitives: []Primitive{IOSLocationWhenInUse, IOSLocationFullAccuracy},
						Tiered:     true,
						Coarse:     IOSLocationWhenInUse,
						Fine:       IOSLocationFullAccuracy,
					}, true
				case domain.CapabilityLocationCoarse:
					return Mapping{Primitives: []Primitive{IOSLocationWhenInUse}, Coarse: IOSLocationWhenInUse, CoarseOnly: true}, true
				}
				return Mapping{}, false
			},
		},
		{
			// До iOS 14 when-in-use всегда даёт точную геолокацию.
			name:    "single-tier-location",
			applies: before(iosPreciseLocationMajor),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				if c.IsLocation() {
					return Mapping{
						Primitives: []Primitive{IOSLocationWhenInUse},
						Coarse:     IOSLocationWhenInUse,
						CoarseOnly: c == domain.CapabilityLocationCoarse,
					}, true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "privacy-prompts",
			applies: always,
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityCamera:
					return single(IOSCamera), true
				case domain.CapabilityMicrophone:
					return single(IOSMicrophone), true
				case domain.CapabilityPhotos, domain.CapabilityVideos:
					return single(IOSPhotoLibrary), true
				case domain.CapabilityAudioMedia:
					return single(IOSMediaLibrary), true
				case domain.CapabilityNotifications:
					return single(IOSNotifications), true
				case domain.CapabilityHealthMonitoring, domain.CapabilityHealthSharing:
					return single(IOSHealthKit), true
				}
				return Mapping{}, false
			},
		},
	}
}

// NewIOSAdapter - вариант адаптера для iOS; версия - мажорная версия ОС.
func NewIOSAdapter(bridge Bridge, logger *zap.Logger) Adapter {
	return newAdapter(domain.OSIOS, iosChain(), nil, bridge, logger)
}

// Select выбирает вариант адаптера при старте.
func Select(family domain.OSFamily, bridge Bridge, logger *zap.Logger) (Adapter, error) {
	switch family {
	case domain.OSAndroid:
		return NewAndroidAdapter(bridge, logger), nil
	case domain.OSIOS:
		return NewIOSAdapter(bridge, logger), nil
	default:
		return nil, domain.ErrPlatformUnavailable
	}
}
