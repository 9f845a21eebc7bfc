// Package emissions converts raw digital usage into CO2e grams.
package emissions

// Service identifies a tracked digital service.
type Service string

const (
	ServiceYouTube     Service = "youtube"
	ServiceNetflix     Service = "netflix"
	ServiceSpotify     Service = "spotify"
	ServiceGoogleDrive Service = "google_drive"
	ServiceWebBrowsing Service = "web_browsing"
)

// Resolution is the playback quality for video streaming services.
type Resolution string

const (
	ResolutionSD Resolution = "SD"
	ResolutionHD Resolution = "HD"
	Resolution4K Resolution = "4K"
)

// Unit describes what a factor is billed against.
type Unit string

const (
	UnitPerMinute Unit = "per_minute"
	UnitPerMB     Unit = "per_mb"
)

// qualityDefault keys factors for services whose emissions do not depend
// on playback quality.
const qualityDefault = "default"

// Factor maps one (service, quality) pair to grams CO2e per unit.
type Factor struct {
	Service      Service
	Quality      string
	GramsPerUnit float64
	Unit         Unit
}

// factorTable is loaded once at process start and never mutated.
var factorTable = map[Service]map[string]Factor{
	ServiceYouTube: {
		string(ResolutionSD): {ServiceYouTube, string(ResolutionSD), 0.23, UnitPerMinute},
		string(ResolutionHD): {ServiceYouTube, string(ResolutionHD), 0.46, UnitPerMinute},
		string(Resolution4K): {ServiceYouTube, string(Resolution4K), 1.52, UnitPerMinute},
	},
	ServiceNetflix: {
		string(ResolutionSD): {ServiceNetflix, string(ResolutionSD), 0.21, UnitPerMinute},
		string(ResolutionHD): {ServiceNetflix, string(ResolutionHD), 0.42, UnitPerMinute},
		string(Resolution4K): {ServiceNetflix, string(Resolution4K), 1.38, UnitPerMinute},
	},
	ServiceSpotify: {
		qualityDefault: {ServiceSpotify, qualityDefault, 0.025, UnitPerMinute},
	},
	ServiceGoogleDrive: {
		qualityDefault: {ServiceGoogleDrive, qualityDefault, 0.39, UnitPerMB},
	},
	ServiceWebBrowsing: {
		qualityDefault: {ServiceWebBrowsing, qualityDefault, 0.18, UnitPerMinute},
	},
}

// streamingVideoServices require a resolution on every activity.
var streamingVideoServices = map[Service]bool{
	ServiceYouTube: true,
	ServiceNetflix: true,
}

// KnownService reports whether the service has configured factors.
func KnownService(s Service) bool {
	_, ok := factorTable[s]
	return ok
}

// RequiresResolution reports whether activities for the service must carry
// a playback resolution.
func RequiresResolution(s Service) bool {
	return streamingVideoServices[s]
}

// LookupFactor returns the factor for a service and quality key. The
// quality key is the resolution for video services and "default" otherwise.
func LookupFactor(s Service, quality string) (Factor, bool) {
	byQuality, ok := factorTable[s]
	if !ok {
		return Factor{}, false
	}
	factor, ok := byQuality[quality]
	return factor, ok
}
