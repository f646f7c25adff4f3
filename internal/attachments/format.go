package attachments

// FormatCandidate pairs a recording MIME type with the file extension it is
// stored under.
type FormatCandidate struct {
	MimeType  string
	Extension string
}

// AudioRecordingCandidates is the capture-side preference order. Browsers
// default to webm/opus, which a large share of mobile devices cannot play
// natively, so the broadly-playable lossy formats come first, then the
// broadcast-safe fallback, then the default as a last resort.
var AudioRecordingCandidates = []FormatCandidate{
	{MimeType: "audio/mp4", Extension: "m4a"},
	{MimeType: "audio/mpeg", Extension: "mp3"},
	{MimeType: "audio/ogg;codecs=opus", Extension: "ogg"},
	{MimeType: "audio/wav", Extension: "wav"},
	{MimeType: "audio/webm", Extension: "webm"},
}

// LastResortAudioMime is the capture default that the server re-encodes
// before persisting.
const LastResortAudioMime = "audio/webm"

// PickSupportedFormat returns the first candidate the device supports.
// Pure: the support check is injected, so tests run without media devices.
func PickSupportedFormat(candidates []FormatCandidate, isSupported func(mimeType string) bool) (FormatCandidate, bool) {
	for _, c := range candidates {
		if isSupported(c.MimeType) {
			return c, true
		}
	}
	return FormatCandidate{}, false
}

// PlaybackCapabilityProfile is computed once at session start and threaded
// through the pipeline and the client player, instead of re-detecting the
// device at each call site.
type PlaybackCapabilityProfile struct {
	Mobile         bool
	RecordingMime  string
	RecordingExt   string
	SupportedMimes []string
}

// NewPlaybackProfile resolves the capability profile from an injected
// support check and a mobile hint.
func NewPlaybackProfile(mobile bool, isSupported func(mimeType string) bool) PlaybackCapabilityProfile {
	profile := PlaybackCapabilityProfile{Mobile: mobile}
	for _, c := range AudioRecordingCandidates {
		if isSupported(c.MimeType) {
			profile.SupportedMimes = append(profile.SupportedMimes, c.MimeType)
		}
	}
	if picked, ok := PickSupportedFormat(AudioRecordingCandidates, isSupported); ok {
		profile.RecordingMime = picked.MimeType
		profile.RecordingExt = picked.Extension
	} else {
		// Nothing negotiable; record with the default and rely on the
		// server-side re-encode.
		profile.RecordingMime = LastResortAudioMime
		profile.RecordingExt = "webm"
	}
	return profile
}
