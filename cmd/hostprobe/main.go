// Command hostprobe is a minimal protocol peer: it encodes one
// request, writes it to a serial port, reads one framed response,
// strips and checks the version trailer, and prints the decoded
// result. It is not a reimplementation of the out-of-scope diagnostic
// tool — just enough of a protocol peer to drive a device end-to-end
// without a test harness.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/noviinc/novisigner/internal/protocol"
	"github.com/noviinc/novisigner/internal/transport"
)

func main() {
	port := flag.String("port", "", "serial port device path (required)")
	baud := flag.Int("baud", 1_000_000, "baud rate")
	timeout := flag.Duration("timeout", 2*time.Second, "read timeout")
	request := flag.String("request", "ping", "request: ping|info|serial|pubkey|address|addresslist|sig")
	index := flag.Uint("index", 0, "index argument for address/addresslist requests")
	sigHex := flag.String("hex", "", "hex-encoded message bytes for the sig request")
	flag.Parse()

	if strings.TrimSpace(*port) == "" {
		log.Fatalf("-port is required")
	}

	req, err := buildRequest(*request, uint32(*index), *sigHex)
	if err != nil {
		log.Fatalf("%v", err)
	}

	serialPort, err := transport.OpenSerialPort(*port, *baud, *timeout)
	if err != nil {
		log.Fatalf("open serial port failed: %v", err)
	}
	defer serialPort.Close()

	endpoint := transport.NewSerialEndpoint(serialPort)
	if err := endpoint.Write(protocol.EncodeRequest(req)); err != nil {
		log.Fatalf("write request failed: %v", err)
	}

	raw, err := endpoint.Read()
	if err != nil {
		log.Fatalf("read response failed: %v", err)
	}
	resp, err := protocol.DecodeResponseFramed(raw)
	if err != nil {
		log.Fatalf("decode response failed: %v", err)
	}

	printResponse(resp)
}

func buildRequest(kind string, index uint32, sigHex string) (protocol.Request, error) {
	switch strings.ToLower(kind) {
	case "ping":
		return protocol.Request{Kind: protocol.ReqPing}, nil
	case "info":
		return protocol.Request{Kind: protocol.ReqInfo}, nil
	case "serial":
		return protocol.Request{Kind: protocol.ReqSerial}, nil
	case "pubkey":
		return protocol.Request{Kind: protocol.ReqPubKey}, nil
	case "address":
		return protocol.Request{Kind: protocol.ReqAddress, Index: index}, nil
	case "addresslist":
		return protocol.Request{Kind: protocol.ReqAddressList, Index: index}, nil
	case "sig":
		msg, err := hex.DecodeString(sigHex)
		if err != nil {
			return protocol.Request{}, fmt.Errorf("-hex invalid: %w", err)
		}
		return protocol.Request{Kind: protocol.ReqSig, Bytes: msg}, nil
	default:
		return protocol.Request{}, fmt.Errorf("unknown -request %q", kind)
	}
}

func printResponse(resp protocol.Response) {
	switch resp.Kind {
	case protocol.RespPong:
		fmt.Println("Pong")
	case protocol.RespSig, protocol.RespPubKey, protocol.RespAddress, protocol.RespAddressList, protocol.RespSerial:
		fmt.Printf("%x\n", resp.Bytes)
	case protocol.RespInfo:
		fmt.Printf("has_seed=%v storage_base=0x%X uid=%x\n", resp.HasSeed, resp.StorageBase, resp.UID)
	case protocol.RespErr:
		fmt.Printf("Err: %s\n", resp.ErrMessage)
	}
}
