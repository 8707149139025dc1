package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/voice"
	"github.com/diamondburned/arikawa/v3/voice/voicegateway"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/pkg/util"
)

// speakingHold is how long the speaking flag stays up after the last frame.
const speakingHold = 250 * time.Millisecond

// Discord is a voice channel link over an arikawa voice session. Discord
// carries one Opus frame per packet, so outgoing payloads are split into
// their frames and each incoming frame is wrapped as a one-frame payload.
type Discord struct {
	inbox

	session   *session.Session
	channelID discord.ChannelID
	outbox    chan []byte
	silence   *util.Debouncer

	mu       sync.Mutex
	voice    *voice.Session
	guildID  discord.GuildID
	speaking bool
}

var _ Transport = (*Discord)(nil)

// NewDiscord returns a transport for channelID. s must be opened before
// Open is called.
func NewDiscord(logger *zap.Logger, s *session.Session, channelID discord.ChannelID, filter *SequenceFilter, queueSize int) *Discord {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Discord{
		inbox:     newInbox(logger, filter, queueSize),
		session:   s,
		channelID: channelID,
		outbox:    make(chan []byte, queueSize),
		silence:   util.NewDebouncer(speakingHold),
	}
}

// Open joins the voice channel.
func (d *Discord) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.voice != nil {
		return nil
	}

	channel, err := d.session.Channel(d.channelID)
	if err != nil {
		return fmt.Errorf("failed to get channel info: %w", err)
	}
	if channel.Type != discord.GuildVoice {
		return fmt.Errorf("channel %s is not a voice channel", d.channelID)
	}

	vs, err := voice.NewSession(d.session)
	if err != nil {
		return fmt.Errorf("failed to create voice session: %w", err)
	}
	if err := vs.JoinChannel(ctx, d.channelID, false, false); err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	// Packets are only delivered once we have announced ourselves and the
	// UDP socket has seen a write.
	if err := vs.Speaking(ctx, voicegateway.Microphone); err != nil {
		return fmt.Errorf("failed to set speaking mode: %w", err)
	}
	_, _ = vs.Write(nil)

	d.voice = vs
	d.guildID = channel.GuildID
	d.speaking = true
	d.silence.Reset()

	d.logger.Info("Joined voice channel",
		zap.String("channel_id", d.channelID.String()),
		zap.String("guild_id", channel.GuildID.String()))

	return nil
}

func (d *Discord) current() *voice.Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.voice
}

// Receive runs the read, write and speaking-flag loops.
func (d *Discord) Receive(ctx context.Context) error {
	vs := d.current()
	if vs == nil {
		return ErrNotConnected
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.readLoop(ctx, vs) })
	g.Go(func() error { return d.writeLoop(ctx, vs) })

	return g.Wait()
}

func (d *Discord) readLoop(ctx context.Context, vs *voice.Session) error {
	d.logger.Info("Started receiving voice", zap.String("channel_id", d.channelID.String()))
	defer d.logger.Info("Stopped receiving voice", zap.String("channel_id", d.channelID.String()))

	for ctx.Err() == nil {
		packet, err := vs.ReadPacket()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.logger.Debug("Failed to read voice packet", zap.Error(err))

			continue
		}
		if len(packet.Opus) == 0 {
			continue
		}

		d.offer(Packet{
			SSRC:      packet.SSRC(),
			Sequence:  packet.Sequence(),
			Timestamp: packet.Timestamp(),
			Payload:   codec.AppendFrame(nil, packet.Opus),
		})
	}

	return nil
}

func (d *Discord) writeLoop(ctx context.Context, vs *voice.Session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-d.outbox:
			if err := d.setSpeaking(ctx, vs, true); err != nil {
				d.logger.Warn("Failed to set speaking", zap.Error(err))
			}
			d.silence.Reset()

			if _, err := vs.Write(frame); err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				d.logger.Debug("Failed to write voice frame", zap.Error(err))
			}
		case <-d.silence.C():
			d.silence.Fired()
			if err := d.setSpeaking(ctx, vs, false); err != nil {
				d.logger.Warn("Failed to clear speaking", zap.Error(err))
			}
		}
	}
}

func (d *Discord) setSpeaking(ctx context.Context, vs *voice.Session, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.speaking == on {
		return nil
	}

	flag := voicegateway.SpeakingFlag(0)
	if on {
		flag = voicegateway.Microphone
	}
	if err := vs.Speaking(ctx, flag); err != nil {
		return err
	}
	d.speaking = on

	return nil
}

func (d *Discord) Packets() <-chan Packet {
	return d.packets
}

// Send queues the frames of payload for the write loop, dropping them when
// the queue is full.
func (d *Discord) Send(_ context.Context, payload []byte) error {
	if d.current() == nil {
		return ErrNotConnected
	}

	frames := codec.SplitFrames(payload)
	if frames == nil {
		return fmt.Errorf("malformed voice payload of %d bytes", len(payload))
	}

	for _, f := range frames {
		select {
		case d.outbox <- append([]byte(nil), f...):
		default:
			d.logger.Debug("Voice send queue full, dropping frame", zap.Int("bytes", len(f)))
		}
	}

	return nil
}

// Close leaves the voice channel. It is safe to call more than once.
func (d *Discord) Close(ctx context.Context) error {
	d.mu.Lock()
	vs := d.voice
	d.voice = nil
	d.mu.Unlock()

	if vs == nil {
		return nil
	}
	d.silence.Cancel()

	if err := vs.Leave(ctx); err != nil {
		d.logger.Warn("Failed to leave voice channel cleanly", zap.Error(err))
	}
	d.logger.Info("Left voice channel",
		zap.String("channel_id", d.channelID.String()),
		zap.String("guild_id", d.guildID.String()))

	return nil
}
