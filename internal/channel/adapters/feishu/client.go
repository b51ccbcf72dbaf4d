package feishu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// messenger is the slice of the Feishu open API the adapter calls.
type messenger interface {
	CreateText(ctx context.Context, receiveIDType, receiveID, text string) error
	ReplyText(ctx context.Context, messageID, text string) error
	ChatName(ctx context.Context, chatID string) (string, error)
}

type larkMessenger struct {
	client *lark.Client
}

func newLarkMessenger(cfg Config) messenger {
	return &larkMessenger{client: lark.NewClient(cfg.AppID, cfg.AppSecret)}
}

func textContent(text string) string {
	payload, _ := json.Marshal(map[string]string{"text": text})
	return string(payload)
}

func (m *larkMessenger) CreateText(ctx context.Context, receiveIDType, receiveID, text string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Uuid(uuid.NewString()).
			Build()).
		Build()
	resp, err := m.client.Im.V1.Message.Create(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("feishu send failed: %s (code: %d)", resp.Msg, resp.Code)
	}
	return nil
}

func (m *larkMessenger) ReplyText(ctx context.Context, messageID, text string) error {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Uuid(uuid.NewString()).
			Build()).
		Build()
	resp, err := m.client.Im.V1.Message.Reply(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("feishu reply failed: %s (code: %d)", resp.Msg, resp.Code)
	}
	return nil
}

func (m *larkMessenger) ChatName(ctx context.Context, chatID string) (string, error) {
	resp, err := m.client.Im.V1.Chat.Get(ctx, larkim.NewGetChatReqBuilder().ChatId(chatID).Build())
	if err != nil {
		return "", err
	}
	if !resp.Success() {
		return "", fmt.Errorf("feishu chat lookup failed: %s (code: %d)", resp.Msg, resp.Code)
	}
	if resp.Data == nil || resp.Data.Name == nil {
		return "", nil
	}
	return *resp.Data.Name, nil
}
