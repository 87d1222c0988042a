package device

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/noviinc/novisigner/internal/flash"
	"github.com/noviinc/novisigner/internal/keyengine"
	"github.com/noviinc/novisigner/internal/protocol"
	"github.com/noviinc/novisigner/internal/securestore"
)

// Dispatcher drives one request-response turn at a time over a
// PacketEndpoint: Idle → Reading → Decoding → Handling → Writing →
// Idle. RunOnce performs exactly one poll-and-maybe-respond cycle and
// never blocks.
type Dispatcher struct {
	State    *DeviceState
	Endpoint PacketEndpoint
	Status   StatusSink
	Log      *slog.Logger
}

// NewDispatcher builds a Dispatcher. status may be nil, in which case
// NoopStatusSink is used; log may be nil, in which case slog.Default()
// is used.
func NewDispatcher(state *DeviceState, ep PacketEndpoint, status StatusSink, log *slog.Logger) *Dispatcher {
	if status == nil {
		status = NoopStatusSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{State: state, Endpoint: ep, Status: status, Log: log}
}

// RunOnce performs one dispatch turn. It returns nil on a would-block
// poll, a successfully handled request, or a request that failed and
// was answered with an Err response. A non-nil return indicates a
// transport failure the caller may wish to log upstream (RunOnce
// already logs it at Warn level).
func (d *Dispatcher) RunOnce() error {
	frame, err := d.Endpoint.Read()
	if err != nil {
		switch {
		case errors.Is(err, ErrWouldBlock):
			return nil
		case errors.Is(err, protocol.ErrFrameTooLarge):
			d.reply(protocol.Response{Kind: protocol.RespErr, ErrMessage: "request exceeds maximum frame size"})
			return nil
		default:
			d.Log.Warn("endpoint read failed", "err", err)
			return err
		}
	}

	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		d.reply(protocol.Response{Kind: protocol.RespErr, ErrMessage: err.Error()})
		return nil
	}

	resp, derr := d.handle(req)
	if derr != nil {
		d.reply(protocol.Response{Kind: protocol.RespErr, ErrMessage: derr.Error()})
		return nil
	}
	d.reply(resp)
	return nil
}

// reply encodes resp with the version trailer and writes it. Encode or
// write failures are best-effort-logged only, per the error handling
// design; no retry is attempted.
func (d *Dispatcher) reply(resp protocol.Response) {
	framed := protocol.EncodeResponseFramed(resp)
	if err := d.Endpoint.Write(framed); err != nil {
		d.Log.Warn("endpoint write failed", "err", err)
	}
}

// handle dispatches req against the dispatch table, mutating
// d.State's persistent Context as specified.
func (d *Dispatcher) handle(req protocol.Request) (protocol.Response, *Error) {
	switch req.Kind {
	case protocol.ReqPing:
		return protocol.Response{Kind: protocol.RespPong}, nil

	case protocol.ReqSig:
		ctx, derr := d.context()
		if derr != nil {
			return protocol.Response{}, derr
		}
		sig, err := keyengine.Sign(ctx, req.Bytes)
		if err != nil {
			return protocol.Response{}, mapKeyengineError(err)
		}
		return protocol.Response{Kind: protocol.RespSig, Bytes: sig[:]}, nil

	case protocol.ReqPubKey:
		ctx, derr := d.context()
		if derr != nil {
			return protocol.Response{}, derr
		}
		pub, err := keyengine.PublicKey(ctx)
		if err != nil {
			return protocol.Response{}, mapKeyengineError(err)
		}
		return protocol.Response{Kind: protocol.RespPubKey, Bytes: pub.SerializeUncompressed()}, nil

	case protocol.ReqAddress:
		ctx, derr := d.context()
		if derr != nil {
			return protocol.Response{}, derr
		}
		ctx.SetIdx(req.Index)
		addr, err := keyengine.Address(ctx)
		if err != nil {
			return protocol.Response{}, mapKeyengineError(err)
		}
		return protocol.Response{Kind: protocol.RespAddress, Bytes: addr[:]}, nil

	case protocol.ReqAddressList:
		ctx, derr := d.context()
		if derr != nil {
			return protocol.Response{}, derr
		}
		addrs, err := keyengine.AddressWindow(ctx, req.Index)
		if err != nil {
			return protocol.Response{}, mapKeyengineError(err)
		}
		return protocol.Response{Kind: protocol.RespAddressList, Bytes: addrs[:]}, nil

	case protocol.ReqSerial:
		serial, err := d.State.Secure.Serial()
		if err != nil {
			return protocol.Response{}, newError(FlashProgramming, err.Error())
		}
		return protocol.Response{Kind: protocol.RespSerial, Bytes: serial[:]}, nil

	case protocol.ReqInfo:
		hasSeed, err := d.State.HasSeed()
		if err != nil {
			return protocol.Response{}, newError(FlashProgramming, err.Error())
		}
		uid := d.State.UID
		return protocol.Response{
			Kind:        protocol.RespInfo,
			HasSeed:     hasSeed,
			StorageBase: flash.StorageBaseAddr(),
			UID:         uid[:],
		}, nil

	default:
		return protocol.Response{}, newError(ProtocolDecode, fmt.Sprintf("unhandled request kind %d", req.Kind))
	}
}

// context loads (if needed) and returns the persistent derivation
// context, mapping secure-store failures onto the device error
// taxonomy.
func (d *Dispatcher) context() (*keyengine.Context, *Error) {
	ctx, err := d.State.Context()
	if err != nil {
		return nil, mapSecureStoreError(err)
	}
	return ctx, nil
}

func mapSecureStoreError(err error) *Error {
	switch {
	case errors.Is(err, securestore.ErrAuth):
		return newError(SecureStoreAuth, err.Error())
	case errors.Is(err, securestore.ErrEmpty):
		return newError(SecureStoreEmpty, err.Error())
	case errors.Is(err, securestore.ErrAlreadyErased):
		return newError(SecureStoreAlreadyErased, err.Error())
	case errors.Is(err, securestore.ErrDecode):
		return newError(SecureStoreEmpty, err.Error())
	default:
		return newError(UsbOther, err.Error())
	}
}

func mapKeyengineError(err error) *Error {
	switch {
	case errors.Is(err, keyengine.ErrDerivationFailed):
		return newError(DerivationFailed, err.Error())
	case errors.Is(err, keyengine.ErrCryptoFailed):
		return newError(CryptoFailed, err.Error())
	default:
		return newError(CryptoFailed, err.Error())
	}
}
