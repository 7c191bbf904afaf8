// Package poller implements the readiness-based multiplexer described in
// spec.md §4.3, grounded on original_source/src/poll_data.rs: an epoll fd,
// a result buffer that drains already-ready items before waiting again, and
// a hangup turning into a fatal OneOfMultipleInputClosed error.
package poller

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Source is one readiness-registered input. ReadOne is called only after
// readiness was signalled for its Fd; it may still block briefly inside a
// syscall, matching poll_data.rs's ReadData::read_data contract.
type Source[T any] interface {
	Fd() int
	ReadOne() (T, error)
}

// ClosedError reports that one of the registered sources hung up while the
// poller was waiting (original_source's OneOfMultipleInputClosed).
type ClosedError struct {
	Fd int
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("poller: source fd %d closed", e.Fd)
}

// Poller fuses N readiness-based sources into one event stream of T. It is
// single-threaded: a Poller must not be shared across goroutines, the same
// restriction spec.md §4.3 places on the original.
type Poller[T any] struct {
	epfd    int
	sources map[int]Source[T]
	buffer  []T
}

// New creates an empty poller backed by a fresh epoll instance.
func New[T any]() (*Poller[T], error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("poller: epoll_create1: %w", err)
	}
	return &Poller[T]{epfd: fd, sources: make(map[int]Source[T])}, nil
}

// Register adds a source to the poller, subscribing to its fd's
// readability.
func (p *Poller[T]) Register(s Source[T]) error {
	fd := s.Fd()
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("poller: epoll_ctl add fd %d: %w", fd, err)
	}
	p.sources[fd] = s
	return nil
}

// Close releases the underlying epoll fd. Registered sources are not
// closed; the caller owns their lifetime.
func (p *Poller[T]) Close() error {
	return unix.Close(p.epfd)
}

// Poll returns exactly one value. If a previous wait observed more than one
// ready source, the extra values are already buffered and this call
// returns one of those without touching the kernel; otherwise it waits on
// epoll_wait until at least one source is ready.
func (p *Poller[T]) Poll() (T, error) {
	var zero T

	if len(p.buffer) > 0 {
		v := p.buffer[0]
		p.buffer = p.buffer[1:]
		return v, nil
	}

	events := make([]unix.EpollEvent, len(p.sources))
	for {
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return zero, fmt.Errorf("poller: epoll_wait: %w", err)
		}

		var results []T
		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			src, ok := p.sources[fd]
			if !ok {
				continue
			}
			if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				return zero, &ClosedError{Fd: fd}
			}
			v, err := src.ReadOne()
			if err != nil {
				return zero, err
			}
			results = append(results, v)
		}

		if len(results) == 0 {
			continue
		}
		first := results[0]
		p.buffer = append(p.buffer, results[1:]...)
		return first, nil
	}
}
