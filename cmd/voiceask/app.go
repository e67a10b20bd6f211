package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/hammamikhairi/voiceask/internal/capture"
	"github.com/hammamikhairi/voiceask/internal/display"
	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/engine"
	"github.com/hammamikhairi/voiceask/internal/logger"
	"github.com/hammamikhairi/voiceask/internal/speech"
)

type cliApp struct {
	engine   *engine.Engine
	parser   domain.IntentParser
	notifier domain.Notifier
	mouth    *speech.Mouth
	player   *speech.Player // nil when there is no audio output
	endpoint string
	log      *logger.Logger
	ui       *display.UI
}

func (a *cliApp) run(ctx context.Context) {
	a.ui.PrintHint(engine.LineReady())

	uiCh := a.ui.InputChan()
	for {
		var input string
		var ok bool

		select {
		case <-ctx.Done():
			return
		case input, ok = <-uiCh:
			if !ok {
				return
			}
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		intent, err := a.parser.Parse(ctx, input, a.engine.Snapshot())
		if err != nil {
			a.log.Error("parsing input: %v", err)
			continue
		}

		a.log.Debug("intent: %s (payload=%q)", intent.Type, intent.Payload)
		if a.handleIntent(ctx, intent) {
			return
		}
	}
}

// handleIntent dispatches one intent. It reports whether the app should
// exit.
func (a *cliApp) handleIntent(ctx context.Context, intent *domain.Intent) bool {
	switch intent.Type {
	case domain.IntentToggleRecording:
		a.act(ctx, a.engine.ToggleCapture)
	case domain.IntentStartRecording:
		a.act(ctx, a.engine.BeginCapture)
	case domain.IntentStopRecording:
		a.act(ctx, a.engine.EndCapture)
	case domain.IntentSubmit:
		a.act(ctx, a.engine.Submit)
	case domain.IntentStopSpeaking:
		a.act(ctx, a.engine.StopSpeaking)
	case domain.IntentRepeat:
		a.act(ctx, a.engine.Repeat)
	case domain.IntentPlayback:
		a.playback(ctx)
	case domain.IntentCopy:
		a.copyAnswer()
	case domain.IntentVoices:
		a.showVoices()
	case domain.IntentDevices:
		a.showDevices()
	case domain.IntentStatus:
		a.status()
	case domain.IntentHelp:
		a.showHelp()
	case domain.IntentQuit:
		a.ui.PrintHint("Bye.")
		return true
	default:
		a.ui.PrintHint(fmt.Sprintf("I didn't catch %q. Type 'help' for commands.", intent.Payload))
	}
	return false
}

// act runs an engine action. Failures of the session itself show up
// through follow; only refusals are reported here.
func (a *cliApp) act(ctx context.Context, fn func(context.Context) error) {
	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNothingToSubmit):
		a.ui.PrintHint("Record a question first (ctrl+r).")
	case errors.Is(err, domain.ErrNothingToRepeat):
		a.ui.PrintHint("There is no answer to repeat yet.")
	case errors.Is(err, engine.ErrStopped), errors.Is(err, context.Canceled):
		a.log.Debug("action after shutdown: %v", err)
	default:
		a.log.Debug("action: %v", err)
	}
}

// follow prints phase changes worth keeping in the scrollback: the
// recorded hint, each answer once, and failures.
func (a *cliApp) follow(ctx context.Context) {
	var lastSince time.Time
	var answeredGen uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.engine.Updates():
		}

		s := a.engine.Snapshot()
		if s == nil || s.PhaseSince.Equal(lastSince) {
			continue
		}
		lastSince = s.PhaseSince

		// Updates coalesce, so the answer may first be seen in any phase
		// after the upload.
		if s.ResponseText != "" && s.Generation != answeredGen {
			answeredGen = s.Generation
			a.ui.PrintAnswer(s.ResponseText)
		}

		switch s.Phase {
		case domain.PhaseRecorded:
			a.notify(ctx, s.StatusMessage)
		case domain.PhaseFailed:
			if err := a.notifier.NotifyUrgent(ctx, engine.LineError(s.ErrorMessage)); err != nil {
				a.log.Error("notify: %v", err)
			}
		case domain.PhaseIdle:
			if s.ResponseText == "" && s.StatusMessage != "" && s.StatusMessage != engine.LineRequestingMic() {
				a.notify(ctx, s.StatusMessage)
			}
		}
	}
}

func (a *cliApp) notify(ctx context.Context, msg string) {
	if err := a.notifier.Notify(ctx, msg); err != nil {
		a.log.Error("notify: %v", err)
	}
}

// ── Local helpers ────────────────────────────────────────────────

func (a *cliApp) playback(ctx context.Context) {
	s := a.engine.Snapshot()
	if s.PlayableAudioRef == "" {
		a.ui.PrintHint("No recorded question to play back.")
		return
	}
	if a.player == nil {
		a.ui.PrintHint("Playback is unavailable: no audio output.")
		return
	}

	ref := s.PlayableAudioRef
	a.ui.PrintHint(fmt.Sprintf("Playing your question (%s)...", fmtDuration(s.CapturedAudio.Duration())))
	go func() {
		if err := a.player.PlayFile(ctx, ref); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("playback: %v", err)
			a.ui.PrintUrgent("Playback failed.")
		}
	}()
}

func (a *cliApp) copyAnswer() {
	text := a.engine.Snapshot().ResponseText
	if text == "" {
		a.ui.PrintHint("Nothing to copy yet.")
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		a.log.Warn("clipboard: %v", err)
		a.ui.PrintUrgent("Could not copy to the clipboard.")
		return
	}
	a.ui.PrintHint("Answer copied to the clipboard.")
}

func (a *cliApp) showVoices() {
	voices := a.mouth.Voices()
	if len(voices) == 0 {
		a.ui.PrintHint("No voices loaded.")
		return
	}

	current := a.mouth.Voice()
	a.ui.PrintInfo(fmt.Sprintf("Voices (%d):", len(voices)))
	for _, v := range voices {
		mark := " "
		if current != nil && current.ID == v.ID {
			mark = "*"
		}
		a.ui.PrintHint(fmt.Sprintf(" %s %-40s %-8s %s", mark, v.Name, v.Locale, v.Gender))
	}
}

func (a *cliApp) showDevices() {
	names, err := capture.ListDevices(a.log)
	if err != nil {
		a.ui.PrintUrgent(fmt.Sprintf("Could not list devices: %v", err))
		return
	}
	if len(names) == 0 {
		a.ui.PrintHint("No capture devices found.")
		return
	}
	a.ui.PrintInfo("Capture devices:")
	for _, n := range names {
		a.ui.PrintHint("  " + n)
	}
}

func (a *cliApp) status() {
	s := a.engine.Snapshot()

	a.ui.PrintInfo(fmt.Sprintf("Session: %s", s.ID[:8]))
	a.ui.PrintHint(fmt.Sprintf("Phase:    %s (%s)", s.Phase, fmtDuration(time.Since(s.PhaseSince))))
	a.ui.PrintHint(fmt.Sprintf("Status:   %s", s.StatusMessage))
	if s.CapturedAudio != nil {
		a.ui.PrintHint(fmt.Sprintf("Question: %s recorded", fmtDuration(s.CapturedAudio.Duration())))
	}
	if s.ErrorMessage != "" {
		a.ui.PrintUrgent(fmt.Sprintf("Error:    %s", s.ErrorMessage))
	}
	a.ui.PrintHint(fmt.Sprintf("Endpoint: %s", a.endpoint))
	if v := a.mouth.Voice(); v != nil {
		a.ui.PrintHint(fmt.Sprintf("Voice:    %s", v.Name))
	}
	if a.mouth.Speaking() {
		a.ui.PrintHint("Audio:    speaking")
	}
}

func (a *cliApp) showHelp() {
	a.ui.PrintInfo("Commands:")
	a.ui.PrintHint("  record / r       Start recording (ctrl+r toggles)")
	a.ui.PrintHint("  done / end       Stop recording")
	a.ui.PrintHint("  ask / send       Send the recorded question (ctrl+s)")
	a.ui.PrintHint("  play             Play back the recorded question")
	a.ui.PrintHint("  stop / shh       Stop speaking (ctrl+x)")
	a.ui.PrintHint("  repeat / again   Speak the last answer again")
	a.ui.PrintHint("  copy             Copy the last answer to the clipboard")
	a.ui.PrintHint("  voices           List text-to-speech voices")
	a.ui.PrintHint("  devices          List capture devices")
	a.ui.PrintHint("  status           Show the session")
	a.ui.PrintHint("  help             Show this message")
	a.ui.PrintHint("  quit / exit      Exit")
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm%ds", m, s)
}
