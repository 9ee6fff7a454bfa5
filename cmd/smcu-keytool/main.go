package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"smcu/go-signer/internal/config"
	"smcu/go-signer/internal/doctor"
	"smcu/go-signer/internal/identity"
	"smcu/go-signer/internal/platform/privacylog"
	"smcu/go-signer/internal/signer"
	"smcu/go-signer/pkg/smcu"

	"github.com/mr-tron/base58/base58"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const usage = `usage: smcu-keytool [-config settings.yaml] <command> [flags]

commands:
  init             load the identity, or generate and persist one
  show             print the identity stored in the key file
  export-mnemonic  print the 24-word backup phrase of the identity
  import-mnemonic  restore an identity from a phrase read on stdin
  sign             sign one packet and print the signature
  verify           verify a packet signature against a public key
  doctor           check that the key file is ready for signing
  version          print version and exit
`

var (
	errUsage    = errors.New("invalid usage")
	errNotReady = errors.New("device is not ready to sign")
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatalf("smcu-keytool: %v", err)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("smcu-keytool", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Path to settings YAML (optional)")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}
	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "version" {
		fmt.Fprintf(stdout, "smcu-keytool version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return nil
	}

	settings, err := config.LoadFromPath(*configPath)
	if err != nil {
		return err
	}
	logger := privacylog.NewLogger(stderr, settings.LogLevel)

	switch cmd {
	case "init":
		id := identity.Initialize(settings.KeyFile, identity.InitOptions{
			Passphrase: settings.Passphrase,
			Variant:    settings.Variant(),
			Logger:     logger,
		})
		printIdentity(stdout, settings.KeyFile, id)
		return nil
	case "show":
		id, err := identity.Load(settings.KeyFile, settings.Passphrase)
		if err != nil {
			return err
		}
		printIdentity(stdout, settings.KeyFile, id)
		return nil
	case "export-mnemonic":
		id, err := identity.Load(settings.KeyFile, settings.Passphrase)
		if err != nil {
			return err
		}
		phrase, err := id.Mnemonic()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, phrase)
		return nil
	case "import-mnemonic":
		return importMnemonic(rest, stdin, stdout, stderr, settings)
	case "sign":
		return signPacket(rest, stdout, stderr, settings, logger)
	case "verify":
		return verifyPacket(rest, stdout, stderr, settings)
	case "doctor":
		return runDoctor(rest, stdout, stderr, settings)
	default:
		return errUsage
	}
}

func printIdentity(w io.Writer, path string, id *identity.Identity) {
	fmt.Fprintf(w, "key_file:    %s\n", path)
	fmt.Fprintf(w, "public_key:  %s\n", base58.Encode(id.PublicKey()))
	fmt.Fprintf(w, "fingerprint: %s\n", id.Fingerprint())
	if hw := id.HardwareID(); hw != "" {
		fmt.Fprintf(w, "hardware_id: %s\n", hw)
	}
}

func importMnemonic(args []string, stdin io.Reader, stdout, stderr io.Writer, settings config.Settings) error {
	fs := flag.NewFlagSet("import-mnemonic", flag.ContinueOnError)
	fs.SetOutput(stderr)
	hardwareID := fs.String("hardware-id", "", "Hardware id to store with the restored key")
	force := fs.Bool("force", false, "Overwrite an existing key file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if !*force {
		if _, err := os.Stat(settings.KeyFile); err == nil {
			return fmt.Errorf("%s already exists; pass -force to overwrite", settings.KeyFile)
		}
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	id, err := identity.FromMnemonic(line, strings.TrimSpace(*hardwareID))
	if err != nil {
		return err
	}
	if err := identity.Persist(settings.KeyFile, id, settings.Passphrase); err != nil {
		return err
	}
	printIdentity(stdout, settings.KeyFile, id)
	return nil
}

type packetFlags struct {
	payload   *string
	timestamp *uint
	rssi      *float64
	snr       *float64
	freq      *uint
	datarate  *uint
	bandwidth *uint
}

func bindPacketFlags(fs *flag.FlagSet) packetFlags {
	return packetFlags{
		payload:   fs.String("payload", "", "Packet payload, hex"),
		timestamp: fs.Uint("tmst", 0, "Receive timestamp (32-bit tick count)"),
		rssi:      fs.Float64("rssi", 0, "RSSI in dBm"),
		snr:       fs.Float64("snr", 0, "SNR in dB (wire format v2 only)"),
		freq:      fs.Uint("freq", 0, "Frequency in Hz"),
		datarate:  fs.Uint("dr", 0, "Datarate wire code (5-12)"),
		bandwidth: fs.Uint("bw", 0, "Bandwidth wire code (4, 5 or 6)"),
	}
}

func (p packetFlags) record() (smcu.PacketRecord, error) {
	payload, err := hex.DecodeString(*p.payload)
	if err != nil {
		return smcu.PacketRecord{}, fmt.Errorf("payload: %w", err)
	}
	if len(payload) > smcu.MaxPayloadSize {
		return smcu.PacketRecord{}, fmt.Errorf("payload: %d bytes exceeds %d", len(payload), smcu.MaxPayloadSize)
	}
	if *p.timestamp > 0xffffffff || *p.freq > 0xffffffff || *p.datarate > 0xff || *p.bandwidth > 0xff {
		return smcu.PacketRecord{}, fmt.Errorf("packet field out of range")
	}
	rec := smcu.NewPacketRecord(payload)
	rec.Timestamp = uint32(*p.timestamp)
	rec.RSSI = float32(*p.rssi)
	rec.SNR = float32(*p.snr)
	rec.FrequencyHz = uint32(*p.freq)
	rec.Datarate = uint8(*p.datarate)
	rec.Bandwidth = uint8(*p.bandwidth)
	return rec, nil
}

func signPacket(args []string, stdout, stderr io.Writer, settings config.Settings, logger *slog.Logger) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pf := bindPacketFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	rec, err := pf.record()
	if err != nil {
		return err
	}

	m, status := smcu.Initialize(smcu.Options{Settings: settings, Logger: logger})
	if status != smcu.StatusOK {
		return fmt.Errorf("initialize: %s", status)
	}
	defer m.Release()

	var sig [smcu.SignatureSize]byte
	if status := m.Sign(&rec, &sig); status != smcu.StatusOK {
		return fmt.Errorf("sign: %s (status %d)", status, int32(status))
	}
	var pub [smcu.PublicKeySize]byte
	m.PublicKey(&pub)
	fmt.Fprintf(stdout, "wire_format: %s\n", m.Format())
	fmt.Fprintf(stdout, "public_key:  %s\n", base58.Encode(pub[:]))
	if hw := m.HardwareID(); hw != "" && m.Format() == signer.FormatV2 {
		fmt.Fprintf(stdout, "hardware_id: %s\n", hw)
	}
	fmt.Fprintf(stdout, "signature:   %s\n", hex.EncodeToString(sig[:]))
	return nil
}

func verifyPacket(args []string, stdout, stderr io.Writer, settings config.Settings) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pf := bindPacketFlags(fs)
	pubText := fs.String("pub", "", "Public key, base58")
	sigText := fs.String("sig", "", "Signature, hex")
	hardwareID := fs.String("hardware-id", "", "Hardware id of the signing device (v2)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	rec, err := pf.record()
	if err != nil {
		return err
	}
	pub, err := base58.Decode(*pubText)
	if err != nil {
		return fmt.Errorf("pub: %w", err)
	}
	rawSig, err := hex.DecodeString(*sigText)
	if err != nil || len(rawSig) != signer.SignatureSize {
		return fmt.Errorf("sig: want %d hex-encoded bytes", signer.SignatureSize)
	}
	var sig signer.Signature
	copy(sig[:], rawSig)

	if !signer.Verify(pub, settings.WireFormat, rec.Packet(), *hardwareID, sig) {
		return errors.New("signature does not verify")
	}
	fmt.Fprintln(stdout, "ok")
	return nil
}

func runDoctor(args []string, stdout, stderr io.Writer, settings config.Settings) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	report := doctor.Run(settings)
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(stdout, "ready=%v checks=%d\n", report.Ready, len(report.Checks))
		for _, c := range report.Checks {
			if c.Pass {
				fmt.Fprintf(stdout, "[PASS] %s\n", c.Name)
			} else {
				fmt.Fprintf(stdout, "[FAIL] %s: %s\n", c.Name, c.Reason)
			}
		}
	}
	if !report.Ready {
		return errNotReady
	}
	return nil
}
