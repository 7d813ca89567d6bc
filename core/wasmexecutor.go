package core

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// WASMExecutor runs program bundles inside a wasmer-go sandbox, bridging its
// host capabilities back into the space's EventStore through a blocking
// call from the WASM thread: a pointer-in/pointer-out ABI over
// wasmer.Value, one engine per executor and a fresh store per execution.
type WASMExecutor struct {
	engine *wasmer.Engine
}

func NewWASMExecutor() *WASMExecutor {
	return &WASMExecutor{engine: wasmer.NewEngine()}
}

func (x *WASMExecutor) JobType() string { return "wasm" }

// wasmHostCtx carries everything the host functions close over: the
// module's linear memory (bound after instantiation), the authoring
// identity host calls run under, and an output buffer for print().
type wasmHostCtx struct {
	mem    *wasmer.Memory
	space  *Space
	author ed25519.PrivateKey
	output []byte
	err    error
}

func (h *wasmHostCtx) readString(ptr, length int32) []byte {
	data := h.mem.Data()
	out := make([]byte, length)
	copy(out, data[ptr:ptr+length])
	return out
}

func (h *wasmHostCtx) writeString(ptr int32, payload []byte) {
	copy(h.mem.Data()[ptr:], payload)
}

// Execute instantiates req.WasmBytes fresh, wires the host capability
// surface, and invokes its exported main. Isolation is structural: host
// functions only ever touch h.space and the scoped download/upload
// directories named in req, never ambient paths.
func (x *WASMExecutor) Execute(ctx context.Context, req ExecutionRequest) (*Report, error) {
	store := wasmer.NewStore(x.engine)
	module, err := wasmer.NewModule(store, req.WasmBytes)
	if err != nil {
		return nil, WrapError(ErrValidation, err, "compile wasm module")
	}

	hctx := &wasmHostCtx{space: req.Space, author: ed25519.PrivateKey(req.Author)}
	imports := x.registerHost(store, hctx)

	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return nil, WrapError(ErrIO, err, "instantiate wasm module")
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, NewError(ErrValidation, "wasm module exports no memory")
	}
	hctx.mem = mem

	main, err := instance.Exports.GetFunction("main")
	if err != nil {
		return nil, NewError(ErrValidation, "wasm module exports no main")
	}

	type callResult struct {
		err error
	}
	done := make(chan callResult, 1)
	start := time.Now()
	go func() {
		// host calls that re-enter EventStore run synchronously on this
		// dedicated goroutine; they block here, not the caller.
		_, callErr := main()
		done <- callResult{err: callErr}
	}()

	select {
	case <-ctx.Done():
		// wasmer-go gives no way to interrupt a running call; main() keeps
		// executing on its goroutine after we return. Reap the instance once
		// it actually finishes instead of leaking it for the process lifetime.
		go func() {
			<-done
			instance.Close()
		}()
		return nil, NewError(ErrTimeout, "wasm execution exceeded its timeout")
	case res := <-done:
		instance.Close()
		if active != nil {
			active.WasmExecDuration.Observe(time.Since(start).Seconds())
		}
		if res.err != nil {
			return nil, NewError(ErrIO, "wasm trap: %v", res.err)
		}
		if hctx.err != nil {
			return nil, hctx.err
		}
		return &Report{Output: string(hctx.output)}, nil
	}
}

func i32Func(store *wasmer.Store, params, results int, fn func([]wasmer.Value) ([]wasmer.Value, error)) *wasmer.Function {
	p := make([]wasmer.ValueKind, params)
	r := make([]wasmer.ValueKind, results)
	for i := range p {
		p[i] = wasmer.ValueKind(wasmer.I32)
	}
	for i := range r {
		r[i] = wasmer.ValueKind(wasmer.I32)
	}
	return wasmer.NewFunction(store, wasmer.NewFunctionType(wasmer.NewValueTypes(p...), wasmer.NewValueTypes(r...)), fn)
}

// registerHost wires print/sleep/schema_load_or_create/event_create/
// event_mutate/event_query under the "env" namespace.
func (x *WASMExecutor) registerHost(store *wasmer.Store, h *wasmHostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	hostPrint := i32Func(store, 2, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		ptr, length := args[0].I32(), args[1].I32()
		h.output = append(h.output, h.readString(ptr, length)...)
		return nil, nil
	})

	hostSleep := i32Func(store, 1, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		ms := args[0].I32()
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return nil, nil
	})

	hostSchemaLoadOrCreate := i32Func(store, 2, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		ptr, length := args[0].I32(), args[1].I32()
		schemaJSON := h.readString(ptr, length)

		tables := h.space.Tables()
		hash := sha256.Sum256(schemaJSON)
		if existing, getErr := tables.GetBySchemaHash(hash); getErr == nil {
			return writeJSONResult(h, existing)
		}
		table, err := tables.Mutate(h.author, uuid.New(), schemaJSON)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return writeJSONResult(h, table)
	})

	hostEventCreate := i32Func(store, 4, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		schemaHashHex := string(h.readString(args[0].I32(), args[1].I32()))
		valueJSON := h.readString(args[2].I32(), args[3].I32())
		schemaHash, err := decodeHashHex(schemaHashHex)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		row, err := h.space.Rows().Mutate(h.author, uuid.New(), schemaHash, valueJSON)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return writeJSONResult(h, row)
	})

	hostEventMutate := i32Func(store, 6, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		schemaHashHex := string(h.readString(args[0].I32(), args[1].I32()))
		idStr := string(h.readString(args[2].I32(), args[3].I32()))
		valueJSON := h.readString(args[4].I32(), args[5].I32())
		schemaHash, err := decodeHashHex(schemaHashHex)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		row, err := h.space.Rows().Mutate(h.author, id, schemaHash, valueJSON)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return writeJSONResult(h, row)
	})

	hostEventQuery := i32Func(store, 4, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		schemaHashHex := string(h.readString(args[0].I32(), args[1].I32()))
		substring := string(h.readString(args[2].I32(), args[3].I32()))
		schemaHash, err := decodeHashHex(schemaHashHex)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		rows, err := h.space.Rows().Query(schemaHash, 0, 256)
		if err != nil {
			h.err = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if substring != "" {
			filtered := rows[:0]
			needle := []byte(substring)
			for _, r := range rows {
				if bytes.Contains(bytes.ToLower(r.Content), bytes.ToLower(needle)) {
					filtered = append(filtered, r)
				}
			}
			rows = filtered
		}
		return writeJSONResult(h, rows)
	})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"print":                   hostPrint,
		"sleep":                   hostSleep,
		"schema_load_or_create":   hostSchemaLoadOrCreate,
		"event_create":            hostEventCreate,
		"event_mutate":            hostEventMutate,
		"event_query":             hostEventQuery,
	})
	return imports
}

// writeJSONResult marshals v and writes it at the start of linear memory,
// returning its length as the host call's i32 result. The guest is
// responsible for copying it out before its next host call, which reuses
// the same region.
func writeJSONResult(h *wasmHostCtx, v interface{}) ([]wasmer.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		h.err = WrapError(ErrIO, err, "marshal host call result")
		return []wasmer.Value{wasmer.NewI32(-1)}, nil
	}
	h.writeString(0, data)
	return []wasmer.Value{wasmer.NewI32(int32(len(data)))}, nil
}
