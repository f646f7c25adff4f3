package attachments

import "testing"

func TestPickSupportedFormat_FirstSupportedWins(t *testing.T) {
	supports := func(mime string) bool {
		return mime == "audio/mpeg" || mime == "audio/webm"
	}

	picked, ok := PickSupportedFormat(AudioRecordingCandidates, supports)
	if !ok {
		t.Fatal("expected a pick")
	}
	if picked.MimeType != "audio/mpeg" {
		t.Fatalf("picked %q, want audio/mpeg ahead of audio/webm", picked.MimeType)
	}
}

func TestPickSupportedFormat_WebmIsLastResort(t *testing.T) {
	last := AudioRecordingCandidates[len(AudioRecordingCandidates)-1]
	if last.MimeType != LastResortAudioMime {
		t.Fatalf("candidate order broken: last is %q, want %q", last.MimeType, LastResortAudioMime)
	}

	// A device that only plays webm still gets a pick, but only as the
	// final fallback.
	picked, ok := PickSupportedFormat(AudioRecordingCandidates, func(m string) bool {
		return m == "audio/webm"
	})
	if !ok || picked.MimeType != "audio/webm" {
		t.Fatalf("picked %+v, want the webm fallback", picked)
	}
}

func TestPickSupportedFormat_NoneSupported(t *testing.T) {
	if _, ok := PickSupportedFormat(AudioRecordingCandidates, func(string) bool { return false }); ok {
		t.Fatal("expected no pick when nothing is supported")
	}
}

func TestNewPlaybackProfile(t *testing.T) {
	supports := func(mime string) bool {
		return mime == "audio/mp4" || mime == "audio/wav"
	}

	profile := NewPlaybackProfile(true, supports)
	if !profile.Mobile {
		t.Error("mobile hint lost")
	}
	if profile.RecordingMime != "audio/mp4" || profile.RecordingExt != "m4a" {
		t.Errorf("recording format = %s/%s, want audio/mp4/m4a", profile.RecordingMime, profile.RecordingExt)
	}
	if len(profile.SupportedMimes) != 2 {
		t.Errorf("SupportedMimes = %v", profile.SupportedMimes)
	}
}

func TestNewPlaybackProfile_FallsBackToLastResort(t *testing.T) {
	profile := NewPlaybackProfile(false, func(string) bool { return false })
	if profile.RecordingMime != LastResortAudioMime || profile.RecordingExt != "webm" {
		t.Errorf("fallback profile = %s/%s, want %s/webm", profile.RecordingMime, profile.RecordingExt, LastResortAudioMime)
	}
}
