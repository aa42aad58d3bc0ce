package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/esplink"
	"github.com/muurk/esplink/api"
	"github.com/muurk/esplink/internal/config"
	"github.com/muurk/esplink/internal/logging"
	"github.com/muurk/esplink/internal/version"
	"github.com/muurk/esplink/protocol"
	"github.com/muurk/esplink/transport"
)

// Connection flags shared by all device commands
var (
	address      string
	password     string
	presharedKey string
	timeoutSec   int
	clientInfo   string
)

// Per-command flags
var (
	pingCount    int
	watchPingSec int
	logLevelName string
	dumpConfig   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "Device host[:port], ws:// URL, or registered device name")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Device password (prompted when required and not given)")
	rootCmd.PersistentFlags().StringVar(&presharedKey, "psk", "", "Base64 pre-shared key for encrypted devices")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 0, "Per-request timeout in seconds (0 uses the config default)")
	rootCmd.PersistentFlags().StringVar(&clientInfo, "client-info", "", "Client name advertised during the hello exchange")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(timeCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(toggleCmd)
}

// deviceTarget carries everything needed to reach one device.
type deviceTarget struct {
	name      string // registry name, empty for literal addresses
	addr      string // dial address or ws:// URL
	encrypted bool   // registry says the device expects encrypted frames
	timeout   time.Duration
	client    esplink.ClientInfo
}

// resolveTarget maps the --address flag (registry name, host[:port] or
// ws:// URL) to a dial target, applying config defaults and flag overrides.
func resolveTarget() (*deviceTarget, error) {
	if address == "" {
		return nil, fmt.Errorf("no device given: set --address to a host[:port], ws:// URL or registered device name")
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}

	t := &deviceTarget{
		timeout: 10 * time.Second,
		client:  esplink.ClientInfo{Version: version.Version},
	}
	if reg.Preferences != nil {
		if reg.Preferences.TimeoutSeconds > 0 {
			t.timeout = time.Duration(reg.Preferences.TimeoutSeconds) * time.Second
		}
		t.client.Name = reg.Preferences.ClientInfo
	}
	if timeoutSec > 0 {
		t.timeout = time.Duration(timeoutSec) * time.Second
	}
	if clientInfo != "" {
		t.client.Name = clientInfo
	}

	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		t.addr = address
		return t, nil
	}

	addr, device := reg.Resolve(address)
	t.addr = addr
	if device != nil {
		t.name = address
		t.encrypted = device.Encrypted
	}
	return t, nil
}

func cmdContext(t *deviceTarget) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.timeout)
}

// openDevice dials the target and runs the hello exchange. The returned
// cleanup function closes the underlying stream.
func openDevice(ctx context.Context, t *deviceTarget) (*esplink.Device, func(), error) {
	var (
		stream io.ReadWriteCloser
		err    error
	)
	if strings.HasPrefix(t.addr, "ws://") || strings.HasPrefix(t.addr, "wss://") {
		stream, err = transport.Dial(ctx, t.addr)
	} else {
		var d net.Dialer
		stream, err = d.DialContext(ctx, "tcp", t.addr)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", t.addr, err)
	}

	opts := []esplink.Option{
		esplink.WithLogger(logging.GetLogger()),
		esplink.WithCatalogue(traceCatalogue{inner: api.NewRegistry()}),
	}
	key := presharedKey
	if key == "" && t.encrypted {
		key, err = promptSecret("Encryption key (base64): ")
		if err != nil {
			stream.Close()
			return nil, nil, err
		}
	}
	if key != "" {
		opts = append(opts, esplink.WithEncryption(key))
	}

	conn := esplink.NewConn(stream, opts...)
	device, err := conn.Connect(ctx, t.client)
	if err != nil {
		stream.Close()
		return nil, nil, err
	}
	return device, func() { stream.Close() }, nil
}

// openSession connects and logs in, prompting for the password when the
// device requires one. The returned cleanup closes session and stream.
func openSession(ctx context.Context, t *deviceTarget) (*esplink.Session, func(), error) {
	device, closeStream, err := openDevice(ctx, t)
	if err != nil {
		return nil, nil, err
	}

	var sess *esplink.Session
	if device.Info().AuthRequired {
		pw := password
		if pw == "" {
			pw, err = promptSecret("Device password: ")
			if err != nil {
				closeStream()
				return nil, nil, err
			}
		}
		sess, err = device.Authenticate(ctx, pw)
	} else {
		sess, err = device.Session(ctx)
	}
	if err != nil {
		closeStream()
		return nil, nil, err
	}

	markSeen(t)

	cleanup := func() {
		sess.Close()
		closeStream()
	}
	return sess, cleanup, nil
}

// markSeen best-effort records a successful connection for registry targets.
func markSeen(t *deviceTarget) {
	if t.name == "" {
		return
	}
	reg, err := config.LoadRegistry()
	if err != nil {
		return
	}
	reg.UpdateDeviceLastSeen(t.name)
	if err := reg.Save(); err != nil {
		logging.Warn("could not update device registry", zap.Error(err))
	}
}

// traceCatalogue wraps the stock catalogue and dumps every frame at debug
// level, so ESPLINK_LOG_LEVEL=debug shows the raw traffic of any command.
type traceCatalogue struct {
	inner *api.Registry
}

func (c traceCatalogue) Encode(msg api.Message) (protocol.Type, []byte, error) {
	tag, payload, err := c.inner.Encode(msg)
	if err == nil {
		logging.LogFrame("send", uint32(tag), payload)
	}
	return tag, payload, err
}

func (c traceCatalogue) Decode(tag protocol.Type, payload []byte) (api.Message, error) {
	logging.LogFrame("recv", uint32(tag), payload)
	return c.inner.Decode(tag, payload)
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}

// infoCmd prints the device identity snapshot
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information",
	Long: `Connect to a device and print its identity snapshot.

The snapshot is gathered during the connection handshake, before any
authentication, so this works against password-protected devices too.`,
	Example: `  # Query a device by address (default port 6053)
  esplink-ctl info --address 192.168.1.40

  # Query a registered device by name
  esplink-ctl info --address garden-lights`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext(t)
	defer cancel()

	device, cleanup, err := openDevice(ctx, t)
	if err != nil {
		return err
	}
	defer cleanup()

	info := device.Info()
	fmt.Printf("Name:             %s\n", info.Name)
	fmt.Printf("Model:            %s\n", info.Model)
	fmt.Printf("MAC address:      %s\n", info.MACAddress)
	fmt.Printf("ESPHome version:  %s\n", info.EsphomeVersion)
	if info.CompilationTime != "" {
		fmt.Printf("Compiled:         %s\n", info.CompilationTime)
	}
	fmt.Printf("API version:      %s\n", info.APIVersion)
	fmt.Printf("Server info:      %s\n", info.ServerInfo)
	fmt.Printf("Auth required:    %v\n", info.AuthRequired)
	fmt.Printf("Deep sleep:       %v\n", info.HasDeepSleep)
	return nil
}

// pingCmd measures round trips through the session layer
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping a device",
	Long: `Send application-level pings over an established session and report
round-trip times. This exercises the full frame codec, not just TCP.`,
	Example: `  esplink-ctl ping --address garden-lights
  esplink-ctl ping --address 192.168.1.40 --count 5`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	pingCmd.Flags().IntVar(&pingCount, "count", 1, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	connectCtx, cancel := cmdContext(t)
	sess, cleanup, err := openSession(connectCtx, t)
	cancel()
	if err != nil {
		return err
	}
	defer cleanup()

	for i := 0; i < pingCount; i++ {
		if i > 0 {
			time.Sleep(time.Second)
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		start := time.Now()
		err := sess.Ping(ctx)
		cancel()
		if err != nil {
			return err
		}
		fmt.Printf("pong from %s: seq=%d time=%s\n",
			sess.Info().Name, i, time.Since(start).Round(10*time.Microsecond))
	}
	return nil
}

// timeCmd reads the device clock
var timeCmd = &cobra.Command{
	Use:     "time",
	Short:   "Show the device clock",
	Long:    `Query the device's wall clock and compare it against local time.`,
	Example: `  esplink-ctl time --address garden-lights`,
	Args:    cobra.NoArgs,
	RunE:    runTime,
}

func runTime(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext(t)
	defer cancel()

	sess, cleanup, err := openSession(ctx, t)
	if err != nil {
		return err
	}
	defer cleanup()

	local := time.Now()
	deviceTime, err := sess.DeviceTime(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Device time: %s\n", deviceTime.Format(time.RFC1123))
	fmt.Printf("Local time:  %s\n", local.Format(time.RFC1123))
	fmt.Printf("Offset:      %s\n", deviceTime.Sub(local).Round(time.Second))
	return nil
}

// entitiesCmd lists everything the device exposes
var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List device entities",
	Long: `List every entity the device exposes: sensors, switches, lights and
the rest, with the keys used to address them in commands.`,
	Example: `  esplink-ctl entities --address garden-lights`,
	Args:    cobra.NoArgs,
	RunE:    runEntities,
}

func runEntities(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext(t)
	defer cancel()

	sess, cleanup, err := openSession(ctx, t)
	if err != nil {
		return err
	}
	defer cleanup()

	entities, err := sess.ListEntities(ctx)
	if err != nil {
		return err
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Kind != entities[j].Kind {
			return entities[i].Kind < entities[j].Kind
		}
		return entities[i].ObjectID < entities[j].ObjectID
	})

	fmt.Printf("%-14s %-12s %-28s %s\n", "KIND", "KEY", "OBJECT ID", "NAME")
	for _, e := range entities {
		fmt.Printf("%-14s %-12d %-28s %s\n", e.Kind, e.Key, e.ObjectID, e.Name)
	}
	fmt.Printf("\n%d entities on %s\n", len(entities), sess.Info().Name)
	return nil
}

// watchCmd streams state updates
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch live state updates",
	Long: `Subscribe to state updates and print them as they arrive, until
interrupted with Ctrl+C. The device sends the current state of every
entity immediately after subscribing, then pushes changes as they happen.

A periodic application-level ping keeps half-open connections from going
unnoticed.`,
	Example: `  esplink-ctl watch --address garden-lights
  esplink-ctl watch --address 192.168.1.40 --keepalive 60`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchPingSec, "keepalive", 20, "Seconds between keepalive pings")
}

func runWatch(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}

	// Trap Ctrl+C for clean shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	sess, cleanup, err := openSession(connectCtx, t)
	if err != nil {
		return err
	}
	defer cleanup()

	entities, err := sess.ListEntities(connectCtx)
	if err != nil {
		return err
	}
	names := make(map[uint32]string, len(entities))
	for _, e := range entities {
		names[e.Key] = e.ObjectID
	}

	sess.OnMessage(func(msg api.Message) {
		if line := formatState(names, msg); line != "" {
			fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), line)
		}
	})
	sess.OnError(func(err error) {
		logging.Warn("could not decode pushed message", zap.Error(err))
	})

	if err := sess.SubscribeStates(); err != nil {
		return err
	}

	fmt.Printf("Watching %d entities on %s (Ctrl+C to stop)\n\n", len(entities), sess.Info().Name)
	return streamLoop(ctx, sess, time.Duration(watchPingSec)*time.Second, t.timeout)
}

// logsCmd streams device log lines
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Stream device logs",
	Long: `Subscribe to the device's own log output and print it until
interrupted with Ctrl+C. The level selects how much the device sends;
--dump-config additionally asks it to replay its configuration dump.`,
	Example: `  esplink-ctl logs --address garden-lights
  esplink-ctl logs --address garden-lights --level verbose
  esplink-ctl logs --address garden-lights --dump-config`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logLevelName, "level", "info", "Log level (none, error, warn, info, config, debug, verbose, very_verbose)")
	logsCmd.Flags().BoolVar(&dumpConfig, "dump-config", false, "Ask the device to replay its configuration dump")
}

func runLogs(cmd *cobra.Command, args []string) error {
	level, err := parseLogLevel(logLevelName)
	if err != nil {
		return err
	}

	t, err := resolveTarget()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	sess, cleanup, err := openSession(connectCtx, t)
	if err != nil {
		return err
	}
	defer cleanup()

	sess.OnMessage(func(msg api.Message) {
		if entry, ok := msg.(*api.SubscribeLogsResponse); ok {
			fmt.Println(entry.Message)
		}
	})

	if err := sess.SubscribeLogs(level, dumpConfig); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Streaming %s logs from %s (Ctrl+C to stop)\n", level, sess.Info().Name)
	return streamLoop(ctx, sess, 20*time.Second, t.timeout)
}

// toggleCmd flips a switch entity
var toggleCmd = &cobra.Command{
	Use:   "toggle <switch> [on|off]",
	Short: "Toggle or set a switch",
	Long: `Flip a switch entity, or set it to an explicit state.

The switch is addressed by object ID, name or numeric key. Without an
explicit state the current state is read from the subscription stream and
inverted. Commands are fire-and-forget on the wire; the command waits for
the device's confirming state push before reporting success.`,
	Example: `  # Flip a switch by object ID
  esplink-ctl toggle relay_1 --address garden-lights

  # Force a state
  esplink-ctl toggle relay_1 off --address garden-lights`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runToggle,
}

func runToggle(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext(t)
	defer cancel()

	sess, cleanup, err := openSession(ctx, t)
	if err != nil {
		return err
	}
	defer cleanup()

	entities, err := sess.ListEntities(ctx)
	if err != nil {
		return err
	}
	target, err := findSwitch(entities, args[0])
	if err != nil {
		return err
	}

	// The initial state burst right after subscribing carries the switch's
	// current state; later pushes confirm the command took effect.
	updates := make(chan bool, 8)
	sess.OnMessage(func(msg api.Message) {
		if st, ok := msg.(*api.SwitchStateResponse); ok && st.Key == target.Key {
			select {
			case updates <- st.State:
			default:
			}
		}
	})
	if err := sess.SubscribeStates(); err != nil {
		return err
	}

	var desired bool
	if len(args) == 2 {
		switch args[1] {
		case "on":
			desired = true
		case "off":
			desired = false
		default:
			return fmt.Errorf("state must be on or off, got %q", args[1])
		}
	} else {
		select {
		case current := <-updates:
			desired = !current
		case <-ctx.Done():
			return fmt.Errorf("no current state for %s: %w", target.ObjectID, ctx.Err())
		}
	}

	if err := sess.Send(&api.SwitchCommandRequest{Key: target.Key, State: desired}); err != nil {
		return err
	}

	for {
		select {
		case got := <-updates:
			if got == desired {
				fmt.Printf("%s is now %s\n", target.ObjectID, onOff(got))
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("no state confirmation for %s: %w", target.ObjectID, ctx.Err())
		}
	}
}

// streamLoop keeps a subscription session alive until the context is
// canceled, pinging periodically so half-open connections are noticed.
func streamLoop(ctx context.Context, sess *esplink.Session, keepalive, timeout time.Duration) error {
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nStopping...")
			discCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return sess.Disconnect(discCtx)
		case <-sess.Done():
			return sess.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			err := sess.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("keepalive: %w", err)
			}
		}
	}
}

// findSwitch locates a switch entity by object ID, name or numeric key.
func findSwitch(entities []esplink.Entity, ident string) (esplink.Entity, error) {
	key, keyErr := strconv.ParseUint(ident, 10, 32)
	var switches []string
	for _, e := range entities {
		if e.Kind != esplink.KindSwitch {
			continue
		}
		if e.ObjectID == ident || e.Name == ident || (keyErr == nil && e.Key == uint32(key)) {
			return e, nil
		}
		switches = append(switches, e.ObjectID)
	}
	if len(switches) == 0 {
		return esplink.Entity{}, fmt.Errorf("device has no switch entities")
	}
	return esplink.Entity{}, fmt.Errorf("no switch %q (available: %s)", ident, strings.Join(switches, ", "))
}

// formatState renders a state push as a one-line summary, or "" for
// messages that are not entity states.
func formatState(names map[uint32]string, msg api.Message) string {
	sm, ok := msg.(api.StateMessage)
	if !ok {
		return ""
	}
	name := names[sm.EntityKey()]
	if name == "" {
		name = fmt.Sprintf("key %d", sm.EntityKey())
	}

	switch m := msg.(type) {
	case *api.BinarySensorStateResponse:
		if m.MissingState {
			return name + ": unknown"
		}
		return fmt.Sprintf("%s: %s", name, onOff(m.State))
	case *api.SensorStateResponse:
		if m.MissingState {
			return name + ": unknown"
		}
		return fmt.Sprintf("%s: %g", name, m.State)
	case *api.SwitchStateResponse:
		return fmt.Sprintf("%s: %s", name, onOff(m.State))
	case *api.TextSensorStateResponse:
		if m.MissingState {
			return name + ": unknown"
		}
		return fmt.Sprintf("%s: %s", name, m.State)
	case *api.LightStateResponse:
		if !m.State {
			return name + ": off"
		}
		if m.Brightness > 0 {
			return fmt.Sprintf("%s: on (brightness %.0f%%)", name, m.Brightness*100)
		}
		return name + ": on"
	case *api.CoverStateResponse:
		return fmt.Sprintf("%s: position %.0f%%", name, m.Position*100)
	case *api.FanStateResponse:
		if !m.State {
			return name + ": off"
		}
		return fmt.Sprintf("%s: on (speed %d)", name, m.SpeedLevel)
	case *api.ClimateStateResponse:
		return fmt.Sprintf("%s: current %.1f, target %.1f", name, m.CurrentTemperature, m.TargetTemperature)
	case *api.NumberStateResponse:
		if m.MissingState {
			return name + ": unknown"
		}
		return fmt.Sprintf("%s: %g", name, m.State)
	case *api.SelectStateResponse:
		if m.MissingState {
			return name + ": unknown"
		}
		return fmt.Sprintf("%s: %s", name, m.State)
	default:
		return fmt.Sprintf("%s: %d", name, msg.MessageType())
	}
}

// parseLogLevel maps a CLI level name to the wire enumeration.
func parseLogLevel(s string) (api.LogLevel, error) {
	switch strings.ToLower(s) {
	case "none":
		return api.LogLevelNone, nil
	case "error":
		return api.LogLevelError, nil
	case "warn":
		return api.LogLevelWarn, nil
	case "info":
		return api.LogLevelInfo, nil
	case "config":
		return api.LogLevelConfig, nil
	case "debug":
		return api.LogLevelDebug, nil
	case "verbose":
		return api.LogLevelVerbose, nil
	case "very_verbose", "very-verbose":
		return api.LogLevelVeryVerbose, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (use none, error, warn, info, config, debug, verbose or very_verbose)", s)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
