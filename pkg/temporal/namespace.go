package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
)

// EnsureNamespace registers the namespace if it doesn't exist yet. Safe to
// call on every worker start.
func EnsureNamespace(ctx context.Context, hostPort, namespace string, retention time.Duration, logger *zap.Logger) error {
	nsClient, err := client.NewNamespaceClient(client.Options{
		HostPort: hostPort,
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace client: %w", err)
	}
	defer nsClient.Close()

	_, err = nsClient.Describe(ctx, namespace)
	if err == nil {
		logger.Debug("Namespace already exists", zap.String("namespace", namespace))
		return nil
	}

	var notFound *serviceerror.NamespaceNotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe namespace: %w", err)
	}

	logger.Info("Creating namespace", zap.String("namespace", namespace))
	err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        namespace,
		WorkflowExecutionRetentionPeriod: durationpb.New(retention),
	})
	if err != nil {
		return fmt.Errorf("failed to register namespace: %w", err)
	}

	// Registration is eventually consistent on the server side.
	time.Sleep(2 * time.Second)
	return EnsureNamespace(ctx, hostPort, namespace, retention, logger)
}
