package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/planner"
)

// PlanRunner computes a collection plan from the current snapshot.
type PlanRunner interface {
	ComputePlan(ctx context.Context) (*planner.Plan, error)
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	syncJob          *SyncJob
	planRunner       PlanRunner
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	SyncJob          *SyncJob
	PlanRunner       PlanRunner
	Logger           zerolog.Logger
}

// JobMessage represents a worker job message.
type JobMessage struct {
	JobType  string `json:"job_type"`
	SkipSync bool   `json:"skip_sync,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		syncJob:          cfg.SyncJob,
		planRunner:       cfg.PlanRunner,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Handle based on job type.
	var err error
	switch job.JobType {
	case "snapshot_sync":
		err = h.handleSnapshotSync(ctx)
	case "plan_compute":
		err = h.handlePlanCompute(ctx, job)
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleSnapshotSync(ctx context.Context) error {
	result, err := h.syncJob.Run(ctx)
	if err != nil {
		return err
	}

	// Partial reading failures are tolerable; a majority is not.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many reading sync failures: %d/%d", result.Failed, result.Failed+result.Successful)
	}

	if h.syncJob.config.PlanAfterSync && h.planRunner != nil {
		return h.handlePlanCompute(ctx, JobMessage{JobType: "plan_compute", SkipSync: true})
	}

	return nil
}

func (h *PubSubHandler) handlePlanCompute(ctx context.Context, job JobMessage) error {
	if !job.SkipSync && h.syncJob != nil {
		if _, err := h.syncJob.Run(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("pre-plan sync failed, planning on stale snapshot")
		}
	}

	plan, err := h.planRunner.ComputePlan(ctx)
	if err != nil {
		return fmt.Errorf("compute plan: %w", err)
	}

	h.logger.Info().
		Str("plan_id", plan.ID).
		Int("trips", plan.Stats.TotalTrips).
		Int("fleet_size", plan.Stats.FleetSize).
		Bool("overflow_free", plan.Verification.OverflowFree).
		Int("uncovered", len(plan.Uncovered)).
		Msg("plan computed")

	return nil
}
