package blackboard

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	defaultDispatchWorkers uint = 4
	defaultDispatchQueue   uint = 256
)

// dispatchJob is one outbound trigger delivery.
type dispatchJob struct {
	Endpoint       string
	MaxExecutionMS int64
	Payload        TriggerPayload
}

// DispatchConfig configures an HTTPDispatcher.
type DispatchConfig struct {
	// NumWorkers is the number of background delivery goroutines. Defaults to 4.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel. Defaults to 256.
	QueueSize uint

	// Client performs the outbound POST. Defaults to a plain http.Client.
	Client *http.Client

	Logger *zap.Logger
}

// HTTPDispatcher delivers fired triggers to a scent's agent_endpoint as a
// JSON-RPC 2.0 notification, off the evaluation loop's goroutine. Delivery
// is best-effort: failures are logged, never retried, never surfaced to the
// scent or the caller of registerScent.
type HTTPDispatcher struct {
	queue  chan dispatchJob
	client *http.Client
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewHTTPDispatcher starts the dispatcher's worker pool.
func NewHTTPDispatcher(c DispatchConfig) *HTTPDispatcher {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultDispatchWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultDispatchQueue
	}
	if c.Client == nil {
		c.Client = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	d := &HTTPDispatcher{
		queue:  make(chan dispatchJob, c.QueueSize),
		client: c.Client,
		logger: c.Logger,
	}

	d.wg.Add(int(c.NumWorkers))
	for i := uint(0); i < c.NumWorkers; i++ {
		go d.worker(i)
	}

	return d
}

// Dispatch enqueues a trigger delivery. Non-blocking: if the queue is full
// the job is dropped and logged rather than stalling the evaluation loop.
func (d *HTTPDispatcher) Dispatch(endpoint string, maxExecutionMS int64, payload TriggerPayload) {
	job := dispatchJob{Endpoint: endpoint, MaxExecutionMS: maxExecutionMS, Payload: payload}

	select {
	case d.queue <- job:
	default:
		d.logger.Error("trigger not dispatched, queue full, job dropped",
			zap.String("scent_id", payload.ScentID),
			zap.String("endpoint", endpoint),
		)
	}
}

// Close signals workers to stop and waits for in-flight deliveries to drain.
func (d *HTTPDispatcher) Close() {
	close(d.queue)
	d.wg.Wait()
}

func (d *HTTPDispatcher) worker(id uint) {
	defer d.wg.Done()
	d.logger.Debug("dispatch worker started", zap.Uint("worker_id", id))

	for job := range d.queue {
		d.deliver(job)
	}

	d.logger.Debug("dispatch worker stopped", zap.Uint("worker_id", id))
}

func (d *HTTPDispatcher) deliver(job dispatchJob) {
	timeout := time.Duration(job.MaxExecutionMS) * time.Millisecond
	if job.MaxExecutionMS <= 0 || timeout > math.MaxInt64 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "sbp/trigger",
		"params":  job.Payload,
	})
	if err != nil {
		d.logger.Error("marshaling trigger notification failed",
			zap.String("scent_id", job.Payload.ScentID), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.Endpoint, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("building trigger request failed",
			zap.String("scent_id", job.Payload.ScentID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("trigger delivery failed",
			zap.String("scent_id", job.Payload.ScentID),
			zap.String("endpoint", job.Endpoint),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		d.logger.Warn("trigger endpoint returned an error status",
			zap.String("scent_id", job.Payload.ScentID),
			zap.String("endpoint", job.Endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return
	}

	d.logger.Debug("trigger delivered",
		zap.String("scent_id", job.Payload.ScentID),
		zap.String("endpoint", job.Endpoint),
	)
}

var _ TriggerDispatcher = (*HTTPDispatcher)(nil)
