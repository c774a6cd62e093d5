package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sanjay9342/ramesh-computers/models"
	aws_pkg "github.com/sanjay9342/ramesh-computers/pkg/aws"
)

type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	return p.client.Publish(ctx, p.topicArn, evt.Type, payload)
}
