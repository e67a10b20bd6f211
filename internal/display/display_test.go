package display

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
	"github.com/hammamikhairi/voiceask/internal/storage"
)

func setupModel(t *testing.T, state *domain.SessionState) (model, chan string) {
	t.Helper()
	store := storage.NewMemoryStore(logger.New(logger.LevelOff, nil))
	if state != nil {
		if err := store.Save(context.Background(), state); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	inputCh := make(chan string, 4)
	m := newModel(store, inputCh, make(chan struct{}), func(string) {})
	m.refresh()
	return m, inputCh
}

func TestAffordances(t *testing.T) {
	tests := []struct {
		name  string
		state domain.SessionState
		want  []string
		never []string
	}{
		{"idle", domain.SessionState{Phase: domain.PhaseIdle}, []string{"ctrl+r"}, []string{"ctrl+s", "ctrl+x"}},
		{"recording", domain.SessionState{Phase: domain.PhaseRecording}, []string{"ctrl+r"}, []string{"ctrl+s"}},
		{"recorded with file", domain.SessionState{Phase: domain.PhaseRecorded, PlayableAudioRef: "/tmp/q.wav"}, []string{"ctrl+s", "play"}, nil},
		{"recorded without file", domain.SessionState{Phase: domain.PhaseRecorded}, []string{"ctrl+s"}, []string{"play"}},
		{"uploading", domain.SessionState{Phase: domain.PhaseUploading}, nil, []string{"ctrl+s", "ctrl+r"}},
		{"speaking", domain.SessionState{Phase: domain.PhaseSpeaking}, []string{"ctrl+x"}, nil},
		{"failed", domain.SessionState{Phase: domain.PhaseFailed}, []string{"ctrl+r"}, []string{"ctrl+x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(affordances(&tt.state), " ")
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("missing %q in %q", w, got)
				}
			}
			for _, n := range tt.never {
				if strings.Contains(got, n) {
					t.Errorf("unexpected %q in %q", n, got)
				}
			}
		})
	}
}

func TestRenderBar(t *testing.T) {
	now := time.Now()
	m, _ := setupModel(t, &domain.SessionState{
		Phase:         domain.PhaseRecording,
		StatusMessage: "Recording...",
		PhaseSince:    now.Add(-65 * time.Second),
	})
	m.now = now

	bar := m.renderBar()
	for _, want := range []string{"REC 1m05s", "Recording..."} {
		if !strings.Contains(bar, want) {
			t.Errorf("bar missing %q: %q", want, bar)
		}
	}

	m, _ = setupModel(t, &domain.SessionState{
		Phase:         domain.PhaseFailed,
		StatusMessage: "Error: overloaded",
		ErrorMessage:  "overloaded",
	})
	if bar := m.renderBar(); !strings.Contains(bar, "Error: overloaded") {
		t.Errorf("failed bar missing error: %q", bar)
	}
}

func TestKeyBindingsRespectPhase(t *testing.T) {
	tests := []struct {
		name  string
		phase domain.Phase
		key   tea.KeyType
		want  string // "" = nothing sent
	}{
		{"record from idle", domain.PhaseIdle, tea.KeyCtrlR, CmdToggleRecording},
		{"submit when recorded", domain.PhaseRecorded, tea.KeyCtrlS, CmdSubmit},
		{"submit suppressed while uploading", domain.PhaseUploading, tea.KeyCtrlS, ""},
		{"stop when speaking", domain.PhaseSpeaking, tea.KeyCtrlX, CmdStopSpeaking},
		{"stop suppressed when idle", domain.PhaseIdle, tea.KeyCtrlX, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, inputCh := setupModel(t, &domain.SessionState{Phase: tt.phase, StatusMessage: "x"})
			m.Update(tea.KeyMsg{Type: tt.key})

			select {
			case got := <-inputCh:
				if got != tt.want {
					t.Fatalf("sent %q, want %q", got, tt.want)
				}
			default:
				if tt.want != "" {
					t.Fatalf("nothing sent, want %q", tt.want)
				}
			}
		})
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{4 * time.Second, "4s"},
		{65 * time.Second, "1m05s"},
		{10 * time.Minute, "10m00s"},
	}
	for _, tt := range tests {
		if got := fmtDuration(tt.in); got != tt.want {
			t.Errorf("fmtDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderBanner(t *testing.T) {
	tests := []struct {
		name string
		info BannerInfo
		want []string
	}{
		{
			name: "azure speech",
			info: BannerInfo{Endpoint: "http://localhost:5000/api/process-audio", Format: "flac", Speech: "Azure (westeurope)"},
			want: []string{"http://localhost:5000/api/process-audio (flac)", "Speech  Azure (westeurope)", KeyHints, "'help'"},
		},
		{
			name: "no speech",
			info: BannerInfo{Endpoint: "http://ai.local/api/process-audio", Format: "wav"},
			want: []string{"http://ai.local/api/process-audio (wav)", "Speech  off", KeyHints},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderBanner(120, tt.info)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("banner missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestRenderBannerCentresArt(t *testing.T) {
	first := strings.Split(strings.TrimRight(bannerRaw, "\n"), "\n")[0]

	wide := strings.Split(renderBanner(200, BannerInfo{}), "\n")[0]
	if !strings.HasPrefix(wide, "      ") {
		t.Fatalf("art not centred on a wide terminal: %q", wide)
	}
	narrow := strings.Split(renderBanner(10, BannerInfo{}), "\n")[0]
	if narrow != BannerStyle.Render(first) {
		t.Fatalf("art padded on a narrow terminal: %q", narrow)
	}
}
