package sms

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNS sender IDs are 1-11 alphanumeric characters with at least one letter.
var senderIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,11}$`)

type AWSSNSProvider struct {
	client *sns.Client
}

func NewAWSSNSProvider(region string) (*AWSSNSProvider, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSNSProvider{client: sns.NewFromConfig(cfg)}, nil
}

func (a *AWSSNSProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	if err := request.validate(); err != nil {
		return failed(err), err
	}

	resp, err := a.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(request.To),
		Message:           aws.String(request.Message),
		MessageAttributes: snsAttributes(request),
	})
	if err != nil {
		return failed(err), err
	}

	return &SMSResponse{
		MessageID: aws.ToString(resp.MessageId),
		Status:    "sent",
	}, nil
}

func snsAttributes(request *SMSRequest) map[string]snsTypes.MessageAttributeValue {
	attrs := map[string]snsTypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(snsSMSType(request.Type)),
		},
	}
	if isSenderID(request.From) {
		attrs["AWS.SNS.SMS.SenderID"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(request.From),
		}
	}
	return attrs
}

func snsSMSType(messageType MessageType) string {
	if messageType == MessagePromotional {
		return "Promotional"
	}
	return "Transactional"
}

func isSenderID(from string) bool {
	if !senderIDPattern.MatchString(from) {
		return false
	}
	for _, r := range from {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}
