package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is the one-byte command identifier carried in every header.
type Command uint8

const (
	CmdPrintData           Command = 0xA2
	CmdStatus              Command = 0xA3
	CmdSetHeat             Command = 0xA4
	CmdPrintStartStop      Command = 0xA6
	CmdSetEnergy           Command = 0xAF
	CmdPaperFeedSpeed      Command = 0xBD
	CmdDraft               Command = 0xBE
	CmdPrintDataCompressed Command = 0xBF
)

var commandNames = map[Command]string{
	CmdPrintData:           "PrintData",
	CmdStatus:              "Status",
	CmdSetHeat:             "SetHeat",
	CmdPrintStartStop:      "PrintStartStop",
	CmdSetEnergy:           "SetEnergy",
	CmdPaperFeedSpeed:      "PaperFeedSpeed",
	CmdDraft:               "Draft",
	CmdPrintDataCompressed: "PrintDataCompressed",
}

// Commands returns the catalog in wire-value order.
func Commands() []Command {
	return []Command{
		CmdPrintData,
		CmdStatus,
		CmdSetHeat,
		CmdPrintStartStop,
		CmdSetEnergy,
		CmdPaperFeedSpeed,
		CmdDraft,
		CmdPrintDataCompressed,
	}
}

// Known reports whether c is in the catalog. Unknown commands are still
// structurally valid on the wire.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "Unknown"
}

// ParseCommand accepts a catalog name (case-insensitive) or a numeric id such
// as "0xA3" or "163".
func ParseCommand(raw string) (Command, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}
	for c, name := range commandNames {
		if strings.EqualFold(name, raw) {
			return c, nil
		}
	}
	v, err := strconv.ParseUint(raw, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, raw)
	}
	return Command(v), nil
}
