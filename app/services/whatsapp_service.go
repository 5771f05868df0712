package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cantalab/leadflow/config"
	"github.com/cantalab/leadflow/utils"
	_ "github.com/lib/pq" // PostgreSQL driver for the session store
	"github.com/mdp/qrterminal/v3"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// MediaKind selects the WhatsApp message type used for a media URL
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// ConnectionStatus is the human readable channel state shown in the CRM
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "Conectado"
	StatusDisconnected ConnectionStatus = "Desconectado"
	StatusQRAvailable  ConnectionStatus = "QR disponible. Escanéalo."
)

var (
	ErrNotConnected     = errors.New("whatsapp client is not connected")
	ErrSendTimeout      = errors.New("whatsapp send timed out")
	ErrUnsupportedMedia = errors.New("unsupported media kind")
)

// InboundMessage is a received chat message reduced to what the CRM stores
type InboundMessage struct {
	Phone     string
	IsGroup   bool
	FromMe    bool
	PushName  string
	Text      string
	MediaType string
	MediaData []byte
	MimeType  string
	Timestamp time.Time
}

// InboundHandler consumes inbound messages
type InboundHandler func(ctx context.Context, msg InboundMessage)

// WhatsAppService owns the WhatsApp session and reconnects it when it drops
type WhatsAppService interface {
	Connect(ctx context.Context) error
	// CurrentHandle returns the live client, or nil while disconnected
	CurrentHandle() *whatsmeow.Client
	Status() ConnectionStatus
	LatestQR() string
	SessionPhone() string
	SendText(ctx context.Context, phone, text string) error
	SendMedia(ctx context.Context, phone string, kind MediaKind, url string) error
	OnMessage(handler InboundHandler)
	Close() error
}

// WhatsAppServiceImpl implements WhatsAppService on whatsmeow with a PostgreSQL session store
type WhatsAppServiceImpl struct {
	cfg      config.WhatsAppConfig
	dsn      string
	maxMedia int64

	logger   *logrus.Entry
	waLogger waLog.Logger
	http     *http.Client

	mu        sync.RWMutex
	container *sqlstore.Container
	client    *whatsmeow.Client
	qr        string
	handler   InboundHandler

	reconnect chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewWhatsAppService creates the connection manager. Connect must be called to start it.
func NewWhatsAppService(cfg config.WhatsAppConfig, dsn string, maxMediaBytes int64, logger *logrus.Entry) WhatsAppService {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	return &WhatsAppServiceImpl{
		cfg:       cfg,
		dsn:       dsn,
		maxMedia:  maxMediaBytes,
		logger:    logger,
		waLogger:  NewWALogger(logger, "whatsmeow"),
		http:      &http.Client{Timeout: 60 * time.Second},
		reconnect: make(chan struct{}, 1),
	}
}

// Connect opens the session store, connects the client and starts the reconnect loop
func (s *WhatsAppServiceImpl) Connect(ctx context.Context) error {
	container, err := sqlstore.New(ctx, "postgres", s.dsn, s.waLogger.Sub("Database"))
	if err != nil {
		return fmt.Errorf("failed to open whatsapp session store: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.container = container
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.dial(loopCtx); err != nil {
		s.logger.WithError(err).Warn("initial whatsapp connection failed; retrying in background")
	}

	go s.reconnectLoop(loopCtx)
	return nil
}

// dial builds a client for the stored device and connects it, pairing by QR when there is no session
func (s *WhatsAppServiceImpl) dial(ctx context.Context) error {
	s.mu.RLock()
	container := s.container
	s.mu.RUnlock()

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to load whatsapp device: %w", err)
	}

	client := whatsmeow.NewClient(device, s.waLogger.Sub("Client"))
	client.AddEventHandler(s.handleEvent)

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to get qr channel: %w", err)
		}
		go s.consumeQR(qrChan)
	}

	if err := client.Connect(); err != nil && !errors.Is(err, whatsmeow.ErrAlreadyConnected) {
		return fmt.Errorf("failed to connect whatsapp client: %w", err)
	}
	return nil
}

func (s *WhatsAppServiceImpl) consumeQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case whatsmeow.QRChannelEventCode:
			s.mu.Lock()
			s.qr = evt.Code
			s.mu.Unlock()
			s.logger.WithField("expires_in", evt.Timeout.String()).Info("whatsapp pairing code available")
			if s.cfg.PrintQR {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			}
		case whatsmeow.QRChannelEventError:
			s.logger.WithError(evt.Error).Error("whatsapp pairing failed")
		case "success":
			s.mu.Lock()
			s.qr = ""
			s.mu.Unlock()
			s.logger.Info("whatsapp pairing succeeded")
		case "timeout":
			s.mu.Lock()
			s.qr = ""
			s.mu.Unlock()
			s.logger.Warn("whatsapp pairing code expired")
			s.requestReconnect()
		}
	}
}

func (s *WhatsAppServiceImpl) requestReconnect() {
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

// reconnectLoop re-dials whenever the connection is lost or the device was logged out
func (s *WhatsAppServiceImpl) reconnectLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reconnect:
		case <-ticker.C:
		}

		s.mu.RLock()
		client := s.client
		s.mu.RUnlock()

		switch {
		case client == nil:
			if err := s.dial(ctx); err != nil {
				s.logger.WithError(err).Warn("whatsapp reconnect failed")
			}
		case !client.IsConnected() && client.Store.ID == nil:
			// An unpaired client needs a fresh QR channel before connecting again
			client.Disconnect()
			if err := s.dial(ctx); err != nil {
				s.logger.WithError(err).Warn("whatsapp reconnect failed")
			}
		case !client.IsConnected():
			if err := client.Connect(); err != nil && !errors.Is(err, whatsmeow.ErrAlreadyConnected) {
				s.logger.WithError(err).Warn("whatsapp reconnect failed")
			}
		}
	}
}

func (s *WhatsAppServiceImpl) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		s.mu.Lock()
		s.qr = ""
		s.mu.Unlock()
		s.logger.WithField("phone", s.SessionPhone()).Info("whatsapp connected")
	case *events.Disconnected:
		s.logger.Warn("whatsapp disconnected")
		s.requestReconnect()
	case *events.StreamReplaced:
		s.logger.Warn("whatsapp stream replaced by another client")
	case *events.LoggedOut:
		go s.handleLoggedOut(v)
	case *events.Message:
		s.mu.RLock()
		handler := s.handler
		s.mu.RUnlock()
		if handler == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			handler(ctx, s.toInbound(ctx, v))
		}()
	}
}

// handleLoggedOut drops the stored session so the next dial starts a new pairing
func (s *WhatsAppServiceImpl) handleLoggedOut(evt *events.LoggedOut) {
	s.logger.WithField("reason", evt.Reason.String()).Warn("whatsapp session logged out")

	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Store.Delete(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to clear whatsapp session after logout")
	}
	client.Disconnect()
	s.requestReconnect()
}

func (s *WhatsAppServiceImpl) toInbound(ctx context.Context, evt *events.Message) InboundMessage {
	info := evt.Info
	msg := InboundMessage{
		Phone:     chatPhone(info),
		IsGroup:   info.IsGroup || info.Chat.Server == types.GroupServer,
		FromMe:    info.IsFromMe,
		PushName:  info.PushName,
		Text:      messageText(evt.Message),
		Timestamp: info.Timestamp,
	}

	var (
		media     whatsmeow.DownloadableMessage
		mediaType string
		mimeType  string
	)
	switch {
	case evt.Message.GetImageMessage() != nil:
		img := evt.Message.GetImageMessage()
		media, mediaType, mimeType = img, string(MediaKindImage), img.GetMimetype()
	case evt.Message.GetVideoMessage() != nil:
		vid := evt.Message.GetVideoMessage()
		media, mediaType, mimeType = vid, string(MediaKindVideo), vid.GetMimetype()
	case evt.Message.GetAudioMessage() != nil:
		aud := evt.Message.GetAudioMessage()
		media, mediaType, mimeType = aud, string(MediaKindAudio), aud.GetMimetype()
	}
	if media == nil || msg.IsGroup {
		return msg
	}

	client := s.CurrentHandle()
	if client == nil {
		return msg
	}
	data, err := client.Download(ctx, media)
	if err != nil {
		s.logger.WithError(err).WithField("media_type", mediaType).Warn("failed to download inbound media")
		return msg
	}
	msg.MediaType = mediaType
	msg.MediaData = data
	msg.MimeType = mimeType
	return msg
}

// chatPhone resolves the counterpart phone of a one-to-one chat
func chatPhone(info types.MessageInfo) string {
	chat := info.Chat
	if chat.Server == types.HiddenUserServer {
		if info.IsFromMe && info.RecipientAlt.Server == types.DefaultUserServer {
			chat = info.RecipientAlt
		} else if !info.IsFromMe && info.SenderAlt.Server == types.DefaultUserServer {
			chat = info.SenderAlt
		}
	}
	return utils.DigitsOnly(chat.User)
}

func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	switch {
	case m.GetConversation() != "":
		return m.GetConversation()
	case m.GetExtendedTextMessage() != nil:
		return m.GetExtendedTextMessage().GetText()
	case m.GetImageMessage() != nil:
		return m.GetImageMessage().GetCaption()
	case m.GetVideoMessage() != nil:
		return m.GetVideoMessage().GetCaption()
	}
	return ""
}

// CurrentHandle returns the client only while it holds a logged-in connection
func (s *WhatsAppServiceImpl) CurrentHandle() *whatsmeow.Client {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil || !client.IsConnected() || !client.IsLoggedIn() {
		return nil
	}
	return client
}

// Status reports the connection state shown on the CRM dashboard
func (s *WhatsAppServiceImpl) Status() ConnectionStatus {
	if s.CurrentHandle() != nil {
		return StatusConnected
	}
	if s.LatestQR() != "" {
		return StatusQRAvailable
	}
	return StatusDisconnected
}

// LatestQR returns the pending pairing code, if any
func (s *WhatsAppServiceImpl) LatestQR() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qr
}

// SessionPhone returns the phone of the paired account
func (s *WhatsAppServiceImpl) SessionPhone() string {
	client := s.CurrentHandle()
	if client == nil || client.Store.ID == nil {
		return ""
	}
	return client.Store.ID.User
}

// OnMessage registers the inbound message consumer
func (s *WhatsAppServiceImpl) OnMessage(handler InboundHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// SendText sends a plain text message to the phone digits
func (s *WhatsAppServiceImpl) SendText(ctx context.Context, phone, text string) error {
	return s.send(ctx, phone, func(context.Context, *whatsmeow.Client) (*waE2E.Message, error) {
		return &waE2E.Message{Conversation: proto.String(text)}, nil
	})
}

// SendMedia fetches url, uploads it to WhatsApp and sends it as kind
func (s *WhatsAppServiceImpl) SendMedia(ctx context.Context, phone string, kind MediaKind, url string) error {
	return s.send(ctx, phone, func(ctx context.Context, client *whatsmeow.Client) (*waE2E.Message, error) {
		data, mimeType, err := s.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		return buildMediaMessage(ctx, client, kind, data, mimeType)
	})
}

func (s *WhatsAppServiceImpl) send(ctx context.Context, phone string, build func(context.Context, *whatsmeow.Client) (*waE2E.Message, error)) error {
	client := s.CurrentHandle()
	if client == nil {
		return ErrNotConnected
	}

	timeout := s.cfg.SendTimeout
	if timeout <= 0 {
		timeout = utils.SendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	to, err := recipientJID(phone)
	if err != nil {
		return err
	}
	msg, err := build(ctx, client)
	if err == nil {
		_, err = client.SendMessage(ctx, to, msg)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrSendTimeout, err)
		}
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	return nil
}

// recipientJID addresses the individual chat of phone's digits
func recipientJID(phone string) (types.JID, error) {
	digits := utils.DigitsOnly(phone)
	if digits == "" {
		return types.EmptyJID, fmt.Errorf("invalid recipient %q: no digits", phone)
	}
	jid, err := types.ParseJID(utils.UserJID(digits))
	if err != nil {
		return types.EmptyJID, fmt.Errorf("invalid recipient %q: %w", phone, err)
	}
	return jid, nil
}

func (s *WhatsAppServiceImpl) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid media url: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch media: status %d", resp.StatusCode)
	}

	if s.maxMedia > 0 && resp.ContentLength > s.maxMedia {
		return nil, "", fmt.Errorf("%w: %d bytes at %s", ErrMediaTooLarge, resp.ContentLength, url)
	}

	reader := io.Reader(resp.Body)
	if s.maxMedia > 0 {
		// one extra byte tells a body at the limit from a larger one without a Content-Length
		reader = io.LimitReader(resp.Body, s.maxMedia+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	if s.maxMedia > 0 && int64(len(data)) > s.maxMedia {
		return nil, "", fmt.Errorf("%w: more than %d bytes at %s", ErrMediaTooLarge, s.maxMedia, url)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func buildMediaMessage(ctx context.Context, client *whatsmeow.Client, kind MediaKind, data []byte, mimeType string) (*waE2E.Message, error) {
	switch kind {
	case MediaKindImage:
		up, err := client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}, nil
	case MediaKindVideo:
		up, err := client.Upload(ctx, data, whatsmeow.MediaVideo)
		if err != nil {
			return nil, fmt.Errorf("failed to upload video: %w", err)
		}
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}, nil
	case MediaKindAudio:
		up, err := client.Upload(ctx, data, whatsmeow.MediaAudio)
		if err != nil {
			return nil, fmt.Errorf("failed to upload audio: %w", err)
		}
		if !strings.HasPrefix(mimeType, "audio/") {
			mimeType = "audio/ogg; codecs=opus"
		}
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			PTT:           proto.Bool(true),
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind)
	}
}

// Close stops the reconnect loop and disconnects
func (s *WhatsAppServiceImpl) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	client, container := s.client, s.container
	s.client = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if client != nil {
		client.Disconnect()
	}
	if container != nil {
		return container.Close()
	}
	return nil
}

// MockWhatsAppService implements WhatsAppService for testing
type MockWhatsAppService struct {
	mu           sync.Mutex
	Connected    bool
	QR           string
	Phone        string
	SentMessages []MockWhatsAppMessage
	// FailWith, when set, is consulted before every send
	FailWith func(msg MockWhatsAppMessage) error
	handler  InboundHandler
}

// MockWhatsAppMessage represents a mock outbound message
type MockWhatsAppMessage struct {
	Phone  string
	Kind   MediaKind // empty for text
	Text   string
	URL    string
	SentAt time.Time
}

// NewMockWhatsAppService creates a connected mock
func NewMockWhatsAppService() *MockWhatsAppService {
	return &MockWhatsAppService{Connected: true, Phone: "5215500000000", SentMessages: make([]MockWhatsAppMessage, 0)}
}

func (m *MockWhatsAppService) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connected = true
	return nil
}

func (m *MockWhatsAppService) CurrentHandle() *whatsmeow.Client { return nil }

func (m *MockWhatsAppService) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.Connected:
		return StatusConnected
	case m.QR != "":
		return StatusQRAvailable
	default:
		return StatusDisconnected
	}
}

func (m *MockWhatsAppService) LatestQR() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.QR
}

func (m *MockWhatsAppService) SessionPhone() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Connected {
		return ""
	}
	return m.Phone
}

func (m *MockWhatsAppService) SendText(ctx context.Context, phone, text string) error {
	return m.record(MockWhatsAppMessage{Phone: phone, Text: text})
}

func (m *MockWhatsAppService) SendMedia(ctx context.Context, phone string, kind MediaKind, url string) error {
	return m.record(MockWhatsAppMessage{Phone: phone, Kind: kind, URL: url})
}

func (m *MockWhatsAppService) record(msg MockWhatsAppMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Connected {
		return ErrNotConnected
	}
	if m.FailWith != nil {
		if err := m.FailWith(msg); err != nil {
			return err
		}
	}
	msg.SentAt = utils.UTCNow()
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}

func (m *MockWhatsAppService) OnMessage(handler InboundHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Deliver feeds msg to the registered inbound handler
func (m *MockWhatsAppService) Deliver(ctx context.Context, msg InboundMessage) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler != nil {
		handler(ctx, msg)
	}
}

func (m *MockWhatsAppService) Close() error { return nil }

// GetSentMessages returns all sent mock messages
func (m *MockWhatsAppService) GetSentMessages() []MockWhatsAppMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockWhatsAppMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// ClearSentMessages clears the sent messages list
func (m *MockWhatsAppService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockWhatsAppMessage, 0)
}

// SetConnected toggles the simulated connection
func (m *MockWhatsAppService) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connected = connected
}
