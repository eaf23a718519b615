// Command dsfixture builds, inspects, and deliberately corrupts Data Storage record blobs,
// the on-disk fixtures the test suite and bench rigs load instead of driving a real master
// through an upload/download cycle.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/rolfl/iolink"
)

type cliCommand struct {
	Build   buildCommand   `command:"build" description:"Build a Data Storage record from a YAML entry set"`
	Inspect inspectCommand `command:"inspect" description:"Decode and validate a Data Storage record"`
	Corrupt corruptCommand `command:"corrupt" description:"Flip the CRC of a record to exercise the corrupt-storage path"`
}

type buildCommand struct {
	In  string `short:"i" long:"in" description:"YAML entry file" required:"true"`
	Out string `short:"o" long:"out" description:"Output record file (hex-encoded)" required:"true"`
}

func (c *buildCommand) Execute(args []string) error {
	yamlBytes, err := os.ReadFile(c.In)
	if err != nil {
		return err
	}
	entries, err := iolink.EntriesFromYAML(yamlBytes)
	if err != nil {
		return err
	}
	record := iolink.BuildRecord(entries)
	return os.WriteFile(c.Out, []byte(hex.EncodeToString(record)), 0644)
}

type inspectCommand struct {
	In string `short:"i" long:"in" description:"Record file (hex-encoded)" required:"true"`
}

func (c *inspectCommand) Execute(args []string) error {
	blob, err := readHexFile(c.In)
	if err != nil {
		return err
	}
	entries, err := iolink.InspectRecord(blob)
	if err != nil {
		return err
	}
	out, err := iolink.EntriesToYAML(entries)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

type corruptCommand struct {
	In  string `short:"i" long:"in" description:"Record file (hex-encoded)" required:"true"`
	Out string `short:"o" long:"out" description:"Corrupted record file (hex-encoded)" required:"true"`
}

func (c *corruptCommand) Execute(args []string) error {
	blob, err := readHexFile(c.In)
	if err != nil {
		return err
	}
	corrupted := iolink.CorruptRecord(blob)
	return os.WriteFile(c.Out, []byte(hex.EncodeToString(corrupted)), 0644)
}

func readHexFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(string(raw))
}

func main() {
	cmd := cliCommand{}
	parser := flags.NewParser(&cmd, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
