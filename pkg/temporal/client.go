package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/gridline-markets/gridx/pkg/utils"
	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// Client wraps the Temporal connection plus the queue and workflow id
// conventions shared by the backfill worker and the admin trigger.
type Client struct {
	TClient   client.Client
	Namespace string

	// BackfillQueue is backfill:<chainID>; one queue per chain keeps a slow
	// chain from starving others.
	BackfillQueue string

	// BackfillWorkflowID is backfill:<chainID>:<address>:<jobID>.
	BackfillWorkflowID string
}

type Health struct {
	ConnectionOK  bool                      `json:"connection_ok"`
	BackfillQueue []*taskqueuepb.PollerInfo `json:"backfill_queue"`
}

// NewClient connects using TEMPORAL_HOSTPORT and TEMPORAL_NAMESPACE.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", "gridx")

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, NewZapAdapter(logger))
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:            tClient,
		Namespace:          ns,
		BackfillQueue:      "backfill:%d",
		BackfillWorkflowID: "backfill:%d:%s:%s",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetBackfillQueue returns the backfill task queue for the given chain.
func (c *Client) GetBackfillQueue(chainID uint64) string {
	return fmt.Sprintf(c.BackfillQueue, chainID)
}

// GetBackfillWorkflowID returns the workflow id for one backfill job.
func (c *Client) GetBackfillWorkflowID(chainID uint64, address, jobID string) string {
	return fmt.Sprintf(c.BackfillWorkflowID, chainID, address, jobID)
}

// Health returns the health of the Temporal connection, including pollers on
// the chain's backfill queue.
func (c *Client) Health(ctx context.Context, chainID uint64) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.GetBackfillQueue(chainID)},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.BackfillQueue = rep.GetPollers()
		}
	}
	return h, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.TClient.Close()
}
