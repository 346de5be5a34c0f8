package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

type Logger interface {
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

type (
	Service interface {
		Init() error
		Run(ctx context.Context)
		Stop()
	}
	Services interface {
		AddService(service ...Service)
		Run(ctx context.Context) error
	}
	Manager struct {
		log      Logger
		services []Service
	}
)

func NewManager(log Logger) Services {
	return &Manager{log: log}
}

func (s *Manager) AddService(service ...Service) {
	for _, svc := range service {
		if svc != nil {
			s.services = append(s.services, svc)
		}
	}
}

// Run initialises every service in order and runs each in its own
// goroutine until ctx is done or the process receives SIGINT/SIGTERM.
// When an Init fails, the services started before it are stopped.
func (s *Manager) Run(ctx context.Context) error {
	s.log.Info("going to start %d services", len(s.services))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for count, service := range s.services {
		if err := service.Init(); err != nil {
			for i := 0; i < count; i++ {
				s.services[i].Stop()
			}
			return err
		}
		go service.Run(runCtx)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case <-c:
	case <-ctx.Done():
	}
	cancel()
	s.stop()
	return nil
}

func (s *Manager) stop() {
	s.log.Info("going to stop")
	for i := len(s.services) - 1; i >= 0; i-- {
		s.services[i].Stop()
	}
}
