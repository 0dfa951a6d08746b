package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/network"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

// recordList collects repeated -record flags
type recordList []protocol.Record

func (l *recordList) String() string {
	parts := make([]string, 0, len(*l))
	for _, r := range *l {
		parts = append(parts, strconv.Itoa(int(r.Type)))
	}
	return strings.Join(parts, ",")
}

func (l *recordList) Set(value string) error {
	rec, err := parseRecord(value, protocol.DefaultRegistry())
	if err != nil {
		return err
	}
	*l = append(*l, rec)
	return nil
}

// parseRecord parses "type:hexpayload". Registered types are decoded through
// their shape so malformed payloads are rejected before sending.
func parseRecord(value string, registry *protocol.Registry) (protocol.Record, error) {
	typeStr, hexStr, ok := strings.Cut(value, ":")
	if !ok {
		return protocol.Record{}, fmt.Errorf("record %q: want type:hexpayload", value)
	}
	t, err := strconv.ParseUint(typeStr, 0, 16)
	if err != nil {
		return protocol.Record{}, fmt.Errorf("record %q: bad type: %w", value, err)
	}
	body, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(hexStr), "0x"))
	if err != nil {
		return protocol.Record{}, fmt.Errorf("record %q: bad payload: %w", value, err)
	}

	recordType := uint16(t)
	if codec, ok := registry.Lookup(recordType); ok {
		payload, err := codec.Decode(body)
		if err != nil {
			return protocol.Record{}, fmt.Errorf("record %q: %w", value, err)
		}
		return protocol.NewRecord(recordType, payload), nil
	}
	return protocol.NewRecord(recordType, protocol.RawPayload(body)), nil
}

func main() {
	var records recordList

	target := flag.String("target", "127.0.0.1:3000", "Destination host:port (unicast, broadcast or multicast)")
	exercise := flag.Uint("exercise", 1, "Exercise ID")
	site := flag.Uint("site", 1, "Source entity site")
	app := flag.Uint("app", 1, "Source entity application")
	entity := flag.Uint("entity", 1, "Source entity number")
	radio := flag.Uint("radio", 1, "Radio ID of the intercom on the source entity")
	device := flag.Uint("device", 1, "Source device ID")
	line := flag.Uint("line", 1, "Source line ID")
	controlType := flag.Uint("control-type", protocol.ControlTypeStatus, "Control type")
	lineState := flag.Uint("line-state", protocol.LineStateTransmitting, "Transmit line state")
	command := flag.Uint("command", 0, "Intercom command")
	dump := flag.Bool("dump", false, "Print the encoded PDU as hex instead of sending it")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Var(&records, "record", "Parameter record as type:hexpayload (repeatable)")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: os.Stderr})

	for name, v := range map[string]uint{
		"exercise": *exercise, "device": *device, "line": *line,
		"control-type": *controlType, "line-state": *lineState, "command": *command,
	} {
		if v > 0xFF {
			log.Error("Flag out of range", logger.String("flag", name), logger.Uint("value", v))
			os.Exit(2)
		}
	}
	for name, v := range map[string]uint{"site": *site, "app": *app, "entity": *entity, "radio": *radio} {
		if v > 0xFFFF {
			log.Error("Flag out of range", logger.String("flag", name), logger.Uint("value", v))
			os.Exit(2)
		}
	}

	source := protocol.EntityID{Site: uint16(*site), Application: uint16(*app), Entity: uint16(*entity)}
	pdu := &protocol.IntercomControlPDU{
		Header:            protocol.PDUHeader{ExerciseID: uint8(*exercise)},
		EntityID:          source,
		RadioID:           uint16(*radio),
		ControlType:       uint8(*controlType),
		SourceEntityID:    source,
		SourceDeviceID:    uint8(*device),
		SourceLineID:      uint8(*line),
		TransmitLineState: uint8(*lineState),
		Command:           uint8(*command),
		Records:           records,
	}

	if *dump {
		data, err := pdu.Encode()
		if err != nil {
			log.Error("Failed to encode PDU", logger.Error(err))
			os.Exit(1)
		}
		fmt.Println(hex.EncodeToString(data))
		return
	}

	sender := network.NewSender(*target, log)
	if err := sender.Dial(); err != nil {
		log.Error("Failed to open sender", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = sender.Close() }()

	if err := sender.SendIntercomControl(pdu); err != nil {
		log.Error("Failed to send PDU", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Sent intercom control PDU",
		logger.String("target", *target),
		logger.String("source", pdu.SourceEntityID.String()),
		logger.Int("records", len(pdu.Records)),
		logger.Uint32("parameters_length", pdu.ParametersLength))
}
