// pkg/looper/looper.go
//
// Пакет looper запускает действие в цикле на отдельной goroutine:
// однократный вызов, опциональная пауза, снова вызов — до остановки.
package looper

import (
	"sync"
	"time"
)

// Looper владеет одной goroutine, которая повторяет действие.
// Остановка кооперативная: запрос наблюдается перед следующим вызовом,
// уже выполняющееся действие не прерывается.
type Looper struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Start запускает goroutine и возвращает Looper.
// При interval == 0 действие перезапускается сразу после возврата;
// при interval > 0 между началами вызовов выдерживается пауза.
// Пауза снимается досрочно по Cancel/Stop (таймер, не busy-wait).
func Start(interval time.Duration, fn func()) *Looper {
	l := &Looper{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run(interval, fn)
	return l
}

func (l *Looper) run(interval time.Duration, fn func()) {
	defer close(l.done)

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		fn()

		if interval <= 0 {
			continue
		}

		timer := time.NewTimer(interval)
		select {
		case <-l.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Cancel запрашивает остановку, не дожидаясь завершения goroutine.
// Безопасен для повторных вызовов и для вызова изнутри самого действия.
func (l *Looper) Cancel() {
	l.once.Do(func() { close(l.stop) })
}

// Stop запрашивает остановку и блокируется до завершения goroutine.
// Не вызывать изнутри действия — используйте Cancel.
func (l *Looper) Stop() {
	l.Cancel()
	<-l.done
}

// Done закрывается, когда goroutine завершилась.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}
