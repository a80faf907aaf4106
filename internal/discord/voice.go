// Package discord connects the narrator to a Discord voice channel and
// streams Opus-encoded frames into it.
package discord

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dgnsrekt/narrator/internal/audio"
	"layeh.com/gopus"
)

const (
	// voiceConnectTimeout is the maximum time to wait for voice connection readiness.
	voiceConnectTimeout = 10 * time.Second
	// voiceConnectPollInterval is the polling interval while waiting for connection.
	voiceConnectPollInterval = 100 * time.Millisecond
	// maxOpusDataBytes is the maximum size of an encoded Opus frame.
	maxOpusDataBytes = 4000
)

var (
	// ErrNotConnected is returned when trying to send audio while not connected.
	ErrNotConnected = errors.New("not connected to voice channel")
	// ErrAlreadyConnected is returned when trying to connect while already connected.
	ErrAlreadyConnected = errors.New("already connected to voice channel")
	// ErrConnectionFailed is returned when voice connection fails.
	ErrConnectionFailed = errors.New("failed to connect to voice channel")
	// ErrFrameSize is returned for frames that are not exactly 20ms of Discord PCM.
	ErrFrameSize = errors.New("frame is not 20ms of 48kHz stereo PCM")
)

// VoiceManager manages the Discord voice connection and acts as the playback
// sink for narration audio.
type VoiceManager struct {
	mu              sync.Mutex
	session         *discordgo.Session
	voiceConnection *discordgo.VoiceConnection
	guildID         string
	channelID       string
	logger          *slog.Logger
	connected       bool
	opusEncoder     *gopus.Encoder
}

// NewVoiceManager creates a new voice manager.
func NewVoiceManager(token, guildID, channelID string, logger *slog.Logger) (*VoiceManager, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	// Speech is better served by the VoIP profile than the music one.
	encoder, err := gopus.NewEncoder(audio.DiscordSampleRate, audio.DiscordChannels, gopus.Voip)
	if err != nil {
		return nil, err
	}

	return &VoiceManager{
		session:     session,
		guildID:     guildID,
		channelID:   channelID,
		logger:      logger.With("component", "discord"),
		opusEncoder: encoder,
	}, nil
}

// Open opens the Discord gateway session.
func (vm *VoiceManager) Open() error {
	return vm.session.Open()
}

// Close closes the Discord session and voice connection.
func (vm *VoiceManager) Close() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection != nil {
		vm.voiceConnection.Disconnect()
		vm.voiceConnection = nil
	}
	vm.connected = false

	return vm.session.Close()
}

// Connect joins the configured voice channel.
func (vm *VoiceManager) Connect(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.connected && vm.voiceConnection != nil {
		return nil
	}

	vm.logger.Info("connecting to voice channel", "guild_id", vm.guildID, "channel_id", vm.channelID)

	// mute=false, deaf=true: the narrator never listens.
	vc, err := vm.session.ChannelVoiceJoin(vm.guildID, vm.channelID, false, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	// discordgo exposes readiness as a bool, so poll it.
	deadline := time.Now().Add(voiceConnectTimeout)
	for {
		if ctx.Err() != nil {
			vc.Disconnect()
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			vc.Disconnect()
			return ErrConnectionFailed
		}
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			break
		}
		time.Sleep(voiceConnectPollInterval)
	}

	vm.voiceConnection = vc
	vm.connected = true
	vm.logger.Info("connected to voice channel")

	return nil
}

// Disconnect leaves the voice channel.
func (vm *VoiceManager) Disconnect() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection == nil {
		return nil
	}

	vm.logger.Info("disconnecting from voice channel")
	err := vm.voiceConnection.Disconnect()
	vm.voiceConnection = nil
	vm.connected = false

	return err
}

// IsConnected returns whether the bot is connected to voice.
func (vm *VoiceManager) IsConnected() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.connected && vm.voiceConnection != nil
}

// Format returns the PCM layout Discord voice requires.
func (vm *VoiceManager) Format() audio.Format {
	return audio.DiscordFormat
}

// Prepare joins the voice channel unless already connected.
func (vm *VoiceManager) Prepare(ctx context.Context) error {
	return vm.Connect(ctx)
}

// SetSpeaking toggles the speaking indicator.
func (vm *VoiceManager) SetSpeaking(speaking bool) error {
	vc := vm.connection()
	if vc == nil {
		return ErrNotConnected
	}
	return vc.Speaking(speaking)
}

// WriteFrame encodes one 20ms PCM frame to Opus and hands it to discordgo.
func (vm *VoiceManager) WriteFrame(ctx context.Context, frame []byte) error {
	vc := vm.connection()
	if vc == nil {
		return ErrNotConnected
	}
	if len(frame) != audio.DiscordFrameBytes {
		return ErrFrameSize
	}

	opus, err := vm.encodeOpus(frame)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case vc.OpusSend <- opus:
		return nil
	}
}

func (vm *VoiceManager) connection() *discordgo.VoiceConnection {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.connected {
		return nil
	}
	return vm.voiceConnection
}

// encodeOpus converts 960 stereo samples of PCM to one Opus packet.
func (vm *VoiceManager) encodeOpus(pcm []byte) ([]byte, error) {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return vm.opusEncoder.Encode(samples, audio.DiscordFrameSize, maxOpusDataBytes)
}
