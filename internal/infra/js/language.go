// Package js runs projects written in JavaScript on an embedded goja VM.
package js

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/starlight-bridge/starlight/internal/biz/domain"
	"github.com/starlight-bridge/starlight/internal/biz/usecase"
	"github.com/starlight-bridge/starlight/internal/log"
)

// LanguageID is the id projects use to select this adapter
const LanguageID = "js"

// Language is the goja adapter. It holds no state; every project gets its
// own VM.
type Language struct{}

// NewLanguage creates a new JavaScript adapter
func NewLanguage() *Language {
	return &Language{}
}

func (l *Language) ID() string        { return LanguageID }
func (l *Language) Name() string      { return "JavaScript" }
func (l *Language) Extension() string { return "js" }

// scope is one VM. goja runtimes are not goroutine safe, so every entry
// into the VM goes through mu.
type scope struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	host     usecase.Host
	released bool
}

// Compile evaluates source in a fresh VM with the host globals installed
func (l *Language) Compile(ctx context.Context, host usecase.Host, source string) (usecase.Scope, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	s := &scope{vm: vm, host: host}
	if err := s.installGlobals(); err != nil {
		return nil, fmt.Errorf("failed to install globals: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stop := s.interruptOn(ctx)
	defer stop()

	if _, err := vm.RunScript(host.ProjectName()+".js", source); err != nil {
		return nil, err
	}
	return s, nil
}

// Invoke calls a top level function of the scope
func (l *Language) Invoke(ctx context.Context, sc usecase.Scope, fn string, args []any) (any, error) {
	s, ok := sc.(*scope)
	if !ok {
		return nil, fmt.Errorf("foreign scope %T", sc)
	}
	return s.call(ctx, fn, args)
}

// Release interrupts anything still running in the VM
func (l *Language) Release(sc usecase.Scope) {
	s, ok := sc.(*scope)
	if !ok {
		return
	}
	s.vm.Interrupt("scope released")

	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}

func (s *scope) call(ctx context.Context, fn string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, domain.ErrNotCompiled
	}

	callable, ok := goja.AssertFunction(s.vm.Get(fn))
	if !ok {
		return nil, fmt.Errorf("%s: %w", fn, domain.ErrFunctionNotFound)
	}

	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = s.vm.ToValue(a)
	}

	stop := s.interruptOn(ctx)
	defer stop()

	res, err := callable(goja.Undefined(), values...)
	if err != nil {
		return nil, err
	}
	return res.Export(), nil
}

func (s *scope) callValue(ctx context.Context, fn goja.Callable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}

	stop := s.interruptOn(ctx)
	defer stop()

	if _, err := fn(goja.Undefined()); err != nil {
		log.Error("[JS] timer callback failed", "project", s.host.ProjectName(), "error", err)
	}
}

// interruptOn aborts the running script when ctx ends. The returned func
// must be called with s.mu held once the script has returned.
func (s *scope) interruptOn(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			s.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
		s.vm.ClearInterrupt()
	}
}

func (s *scope) installGlobals() error {
	vm := s.vm

	env := vm.NewObject()
	for k, v := range s.host.Env() {
		if err := env.Set(k, v); err != nil {
			return err
		}
	}

	logger := vm.NewObject()
	name := s.host.ProjectName()
	for level, fn := range map[string]func(string, ...any){
		"debug": log.Debug,
		"info":  log.Info,
		"warn":  log.Warn,
		"error": log.Error,
	} {
		logFn := fn
		if err := logger.Set(level, func(call goja.FunctionCall) goja.Value {
			logFn("[JS] "+call.Argument(0).String(), "project", name)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}

	timer := vm.NewObject()
	if err := timer.Set("schedule", s.schedule); err != nil {
		return err
	}
	if err := timer.Set("repeat", s.repeat); err != nil {
		return err
	}
	if err := timer.Set("cancel", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(s.host.CancelTimer(call.Argument(0).String()))
	}); err != nil {
		return err
	}

	project := vm.NewObject()
	if err := project.Set("id", s.host.ProjectID()); err != nil {
		return err
	}
	if err := project.Set("name", name); err != nil {
		return err
	}

	for global, value := range map[string]any{
		"Env":     env,
		"Log":     logger,
		"Timer":   timer,
		"Project": project,
	} {
		if err := vm.Set(global, value); err != nil {
			return err
		}
	}
	return nil
}

// schedule implements Timer.schedule(delayMillis, callback)
func (s *scope) schedule(call goja.FunctionCall) goja.Value {
	fn, err := s.callbackArg(call, 1)
	if err != nil {
		panic(s.vm.NewGoError(err))
	}
	delay := time.Duration(call.Argument(0).ToInteger()) * time.Millisecond
	id := s.host.Schedule(delay, func(ctx context.Context) { s.callValue(ctx, fn) })
	return s.vm.ToValue(id)
}

// repeat implements Timer.repeat(initialMillis, periodMillis, callback)
func (s *scope) repeat(call goja.FunctionCall) goja.Value {
	fn, err := s.callbackArg(call, 2)
	if err != nil {
		panic(s.vm.NewGoError(err))
	}
	initial := time.Duration(call.Argument(0).ToInteger()) * time.Millisecond
	period := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if period <= 0 {
		panic(s.vm.NewGoError(errors.New("period must be positive")))
	}
	id := s.host.ScheduleRepeating(initial, period, func(ctx context.Context) { s.callValue(ctx, fn) })
	return s.vm.ToValue(id)
}

func (s *scope) callbackArg(call goja.FunctionCall, i int) (goja.Callable, error) {
	fn, ok := goja.AssertFunction(call.Argument(i))
	if !ok {
		return nil, fmt.Errorf("argument %d must be a function", i)
	}
	return fn, nil
}
