package platform

import (
	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

// Разрешения Android.
const (
	AndroidCamera              Primitive = "android.permission.CAMERA"
	AndroidRecordAudio         Primitive = "android.permission.RECORD_AUDIO"
	AndroidCoarseLocation      Primitive = "android.permission.ACCESS_COARSE_LOCATION"
	AndroidFineLocation        Primitive = "android.permission.ACCESS_FINE_LOCATION"
	AndroidReadExternalStorage Primitive = "android.permission.READ_EXTERNAL_STORAGE"
	AndroidWriteExternal       Primitive = "android.permission.WRITE_EXTERNAL_STORAGE"
	AndroidReadMediaImages     Primitive = "android.permission.READ_MEDIA_IMAGES"
	AndroidReadMediaVideo      Primitive = "android.permission.READ_MEDIA_VIDEO"
	AndroidReadMediaAudio      Primitive = "android.permission.READ_MEDIA_AUDIO"
	AndroidPostNotifications   Primitive = "android.permission.POST_NOTIFICATIONS"
	AndroidBodySensors         Primitive = "android.permission.BODY_SENSORS"
	AndroidActivityRecognition Primitive = "android.permission.ACTIVITY_RECOGNITION"
	AndroidCallPhone           Primitive = "android.permission.CALL_PHONE"
	AndroidHealthReadHeartRate Primitive = "android.permission.health.READ_HEART_RATE"
	AndroidHealthReadSteps     Primitive = "android.permission.health.READ_STEPS"
)

// Пороговые API level.
const (
	apiRuntimePermissions  = 23 // Android 6: разрешения во время работы
	apiHealthConnect       = 28
	apiScopedStorage       = 29 // Android 10
	apiActivityRecognition = 29
	apiTwoTierLocation     = 31 // Android 12: пользователь выбирает точность
	apiGranularMedia       = 33 // Android 13
)

func single(p Primitive) Mapping {
	return Mapping{Primitives: []Primitive{p}}
}

func androidChain() []versionGate {
	return []versionGate{
		{
			// До Android 6 всё выдаётся при установке.
			name:    "install-time",
			applies: before(apiRuntimePermissions),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				if c == domain.CapabilityHealthSharing {
					return Mapping{}, false
				}
				return Mapping{AutoGrant: true}, true
			},
		},
		{
			name:    "granular-media",
			applies: since(apiGranularMedia),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityPhotos:
					return single(AndroidReadMediaImages), true
				case domain.CapabilityVideos:
					return single(AndroidReadMediaVideo), true
				case domain.CapabilityAudioMedia:
					return single(AndroidReadMediaAudio), true
				case domain.CapabilityStorageRead:
					return Mapping{Primitives: []Primitive{AndroidReadMediaImages, AndroidReadMediaVideo, AndroidReadMediaAudio}}, true
				case domain.CapabilityNotifications:
					return single(AndroidPostNotifications), true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "shared-storage-media",
			applies: before(apiGranularMedia),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityPhotos, domain.CapabilityVideos, domain.CapabilityAudioMedia, domain.CapabilityStorageRead:
					return single(AndroidReadExternalStorage), true
				case domain.CapabilityNotifications:
					return Mapping{AutoGrant: true}, true
				}
				return Mapping{}, false
			},
		},
		{
			// Запись в приватное хранилище приложения не требует разрешения.
			name:    "scoped-storage",
			applies: since(apiScopedStorage),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				if c == domain.CapabilityStorageWrite {
					return Mapping{AutoGrant: true}, true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "activity-recognition",
			applies: since(apiActivityRecognition),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				if c == domain.CapabilityHealthMonitoring {
					return Mapping{Primitives: []Primitive{AndroidBodySensors, AndroidActivityRecognition}}, true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "legacy-storage",
			applies: before(apiScopedStorage),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				if c == domain.CapabilityStorageWrite {
					return single(AndroidWriteExternal), true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "two-tier-location",
			applies: since(apiTwoTierLocation),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityLocation, domain.CapabilityLocationPrecise:
					return Mapping{
						Primitives: []Primitive{AndroidCoarseLocation, AndroidFineLocation},
						Tiered:     true,
						Coarse:     AndroidCoarseLocation,
						Fine:       AndroidFineLocation,
					}, true
				}
				return Mapping{}, false
			},
		},
		{
			// До Android 12 coarse+fine запрашиваются парой в одном диалоге.
			name:    "paired-location",
			applies: before(apiTwoTierLocation),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityLocation, domain.CapabilityLocationPrecise:
					return Mapping{
						Primitives: []Primitive{AndroidCoarseLocation, AndroidFineLocation},
						Coarse:     AndroidCoarseLocation,
						Fine:       AndroidFineLocation,
					}, true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "health-connect",
			applies: since(apiHealthConnect),
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				if c == domain.CapabilityHealthSharing {
					return Mapping{Primitives: []Primitive{AndroidHealthReadHeartRate, AndroidHealthReadSteps}}, true
				}
				return Mapping{}, false
			},
		},
		{
			name:    "runtime",
			applies: always,
			resolve: func(c domain.CapabilityType) (Mapping, bool) {
				switch c {
				case domain.CapabilityCamera:
					return single(AndroidCamera), true
				case domain.CapabilityMicrophone:
					return single(AndroidRecordAudio), true
				case domain.CapabilityLocationCoarse:
					return Mapping{
						Primitives: []Primitive{AndroidCoarseLocation},
						Coarse:     AndroidCoarseLocation,
						CoarseOnly: true,
					}, true
				case domain.CapabilityHealthMonitoring:
					return single(AndroidBodySensors), true
				}
				return Mapping{}, false
			},
		},
	}
}

func androidExtras(c domain.CapabilityType, apiLevel int) []Primitive {
	if c == domain.CapabilityEmergencyCall && apiLevel >= apiRuntimePermissions {
		return []Primitive{AndroidCallPhone}
	}
	return nil
}

// NewAndroidAdapter - вариант адаптера для Android; версия сравнивается по API level.
func NewAndroidAdapter(bridge Bridge, logger *zap.Logger) Adapter {
	return newAdapter(domain.OSAndroid, androidChain(), androidExtras, bridge, logger)
}
