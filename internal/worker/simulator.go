package worker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/douuvid/Datagouv/internal/domain"
)

const (
	defaultSuccessRate     = 0.8
	defaultProcessingDelay = 2 * time.Second
)

// failureReasons are the named ways a simulated application can fail.
var failureReasons = []string{
	"form submission rejected",
	"captcha challenge encountered",
	"missing required field in application form",
	"offer no longer accepting applications",
	"upload of attached documents failed",
}

// SimulatedLauncher produces a bounded sequence of job applications without
// any external worker. Outcomes follow a weighted random policy; time and
// randomness are injected so runs are deterministic under test.
type SimulatedLauncher struct {
	catalog         []Offer
	clock           clockwork.Clock
	rng             *rand.Rand
	successRate     float64
	processingDelay time.Duration
}

// SimulatorOption customises a SimulatedLauncher.
type SimulatorOption func(*SimulatedLauncher)

// WithRand sets the random source.
func WithRand(rng *rand.Rand) SimulatorOption {
	return func(s *SimulatedLauncher) { s.rng = rng }
}

// WithSuccessRate sets the probability of a successful application.
func WithSuccessRate(rate float64) SimulatorOption {
	return func(s *SimulatedLauncher) { s.successRate = rate }
}

// WithProcessingDelay sets the fixed per-application processing time.
func WithProcessingDelay(d time.Duration) SimulatorOption {
	return func(s *SimulatedLauncher) { s.processingDelay = d }
}

// NewSimulatedLauncher creates a simulated producer over the given catalog.
func NewSimulatedLauncher(catalog []Offer, clock clockwork.Clock, opts ...SimulatorOption) *SimulatedLauncher {
	s := &SimulatedLauncher{
		catalog:         catalog,
		clock:           clock,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate:     defaultSuccessRate,
		processingDelay: defaultProcessingDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Launch starts the producer goroutine for one session.
func (s *SimulatedLauncher) Launch(_ context.Context, cfg LaunchConfig) (Handle, error) {
	h := &simulatedHandle{
		msgCh:  make(chan Message, 64),
		stopCh: make(chan struct{}),
	}
	go s.run(cfg, h)
	return h, nil
}

func (s *SimulatedLauncher) run(cfg LaunchConfig, h *simulatedHandle) {
	defer close(h.msgCh)

	offers := FilterOffers(s.catalog, cfg.UserConfig.SearchKeywords, cfg.UserConfig.SearchLocation)
	if max := cfg.Settings.MaxApplicationsPerSession; len(offers) > max {
		offers = offers[:max]
	}

	if len(offers) == 0 {
		h.send(LogEmitted{Level: domain.LogWarn, Message: "No offers matched the search criteria"})
		return
	}

	h.send(LogEmitted{
		Level:    domain.LogSuccess,
		Message:  fmt.Sprintf("%d offers found", len(offers)),
		Metadata: map[string]any{"keywords": cfg.UserConfig.SearchKeywords, "location": cfg.UserConfig.SearchLocation},
	})

	var total, successful, failed int

	for i, offer := range offers {
		if h.stopped() {
			return
		}

		h.send(ApplicationStarted{JobTitle: offer.Title, Company: offer.Company, Location: offer.Location})

		if !h.sleep(s.clock, s.processingDelay) {
			return
		}

		total++
		completed := ApplicationCompleted{JobTitle: offer.Title, Company: offer.Company}
		screenshotPath := fmt.Sprintf("debug_screenshots/session_%d_application_%d.png", cfg.SessionID, total)

		if s.rng.Float64() < s.successRate {
			successful++
			completed.Status = domain.ApplicationSent
			h.send(LogEmitted{
				Level:   domain.LogSuccess,
				Message: fmt.Sprintf("Application sent for %s at %s", offer.Title, offer.Company),
			})
		} else {
			failed++
			completed.Status = domain.ApplicationFailed
			completed.ErrorMessage = failureReasons[s.rng.Intn(len(failureReasons))]
			h.send(LogEmitted{
				Level:   domain.LogError,
				Message: fmt.Sprintf("Application failed for %s at %s: %s", offer.Title, offer.Company, completed.ErrorMessage),
			})
		}

		if cfg.Settings.CaptureScreenshots {
			completed.ScreenshotPath = screenshotPath
			h.send(ScreenshotCaptured{
				FilePath:    screenshotPath,
				Description: fmt.Sprintf("After application - %s", offer.Title),
			})
		}

		h.send(completed)
		h.send(StatsUpdated{
			TotalApplications:      total,
			SuccessfulApplications: successful,
			FailedApplications:     failed,
		})

		if i < len(offers)-1 {
			delay := time.Duration(cfg.Settings.DelayBetweenApplications) * time.Second
			if !h.sleep(s.clock, delay) {
				return
			}
		}
	}
}

// simulatedHandle always exits with code 0, both after the full sequence and
// on early termination.
type simulatedHandle struct {
	msgCh    chan Message
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (h *simulatedHandle) Messages() <-chan Message { return h.msgCh }

func (h *simulatedHandle) ExitCode() int { return 0 }

func (h *simulatedHandle) Terminate(bool) {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *simulatedHandle) stopped() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

// send delivers a message unless the handle has been terminated.
func (h *simulatedHandle) send(msg Message) {
	select {
	case <-h.stopCh:
	case h.msgCh <- msg:
	}
}

// sleep waits for d, returning false if the handle was terminated first.
func (h *simulatedHandle) sleep(clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return !h.stopped()
	}
	select {
	case <-h.stopCh:
		return false
	case <-clock.After(d):
		return true
	}
}
