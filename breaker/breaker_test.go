package breaker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/relaymesh/spipe/breaker"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("func New()", func() {
	noop := func(context.Context, int) (int, error) {
		return 0, nil
	}

	It("requires a protected operation", func() {
		_, err := New[int, int](nil, noop, Options{Name: "<breaker>"}, nil)
		Expect(err).Should(HaveOccurred())
	})

	It("requires a fallback operation", func() {
		_, err := New(noop, nil, Options{Name: "<breaker>"}, nil)
		Expect(err).Should(HaveOccurred())
	})

	It("requires a name", func() {
		_, err := New(noop, noop, Options{}, nil)
		Expect(err).Should(HaveOccurred())
	})

	It("rejects negative timeouts", func() {
		_, err := New(noop, noop, Options{
			Name:    "<breaker>",
			Timeout: -1 * time.Second,
		}, nil)
		Expect(err).Should(HaveOccurred())
	})
})

var _ = Describe("type Breaker", func() {
	failure := errors.New("<operation failed>")

	var (
		ctx      context.Context
		opCalls  int
		opErr    error
		breaker  *Breaker[string, string]
		resetDur time.Duration
	)

	makeBreaker := func() {
		var err error
		breaker, err = New(
			func(_ context.Context, req string) (string, error) {
				opCalls++

				if opErr != nil {
					return "", opErr
				}

				return "<delivered:" + req + ">", nil
			},
			func(context.Context, string) (string, error) {
				return "<fallback>", nil
			},
			Options{
				Name:         "<breaker>",
				MaxFailures:  3,
				ResetTimeout: resetDur,
			},
			logging.DiscardLogger{},
		)
		Expect(err).ShouldNot(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		opCalls = 0
		opErr = nil
		resetDur = 20 * time.Millisecond
		makeBreaker()
	})

	trip := func() {
		opErr = failure

		for i := 0; i < 3; i++ {
			_, err := breaker.Invoke(ctx, "<req>")
			Expect(err).To(MatchError(failure))
		}

		Expect(breaker.State()).To(Equal(StateOpen))
	}

	Describe("func Invoke()", func() {
		It("passes calls to the protected operation while closed", func() {
			res, err := breaker.Invoke(ctx, "<req>")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(res).To(Equal("<delivered:<req>>"))
			Expect(breaker.State()).To(Equal(StateClosed))
		})

		It("stays closed while failures remain below the limit", func() {
			opErr = failure

			for i := 0; i < 2; i++ {
				_, err := breaker.Invoke(ctx, "<req>")
				Expect(err).To(MatchError(failure))
			}

			Expect(breaker.State()).To(Equal(StateClosed))
		})

		It("resets the failure count on success", func() {
			opErr = failure

			for i := 0; i < 2; i++ {
				breaker.Invoke(ctx, "<req>") // nolint:errcheck
			}

			opErr = nil
			_, err := breaker.Invoke(ctx, "<req>")
			Expect(err).ShouldNot(HaveOccurred())

			// The earlier failures no longer count toward the limit.
			opErr = failure

			for i := 0; i < 2; i++ {
				breaker.Invoke(ctx, "<req>") // nolint:errcheck
			}

			Expect(breaker.State()).To(Equal(StateClosed))
		})

		It("opens after the configured number of consecutive failures", func() {
			trip()
		})

		It("short-circuits to the fallback while open", func() {
			trip()

			calls := opCalls

			res, err := breaker.Invoke(ctx, "<req>")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(res).To(Equal("<fallback>"))
			Expect(opCalls).To(Equal(calls))
		})

		It("permits a half-open trial after the reset timeout", func() {
			trip()

			time.Sleep(resetDur + 5*time.Millisecond)

			opErr = nil
			calls := opCalls

			res, err := breaker.Invoke(ctx, "<req>")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(res).To(Equal("<delivered:<req>>"))
			Expect(opCalls).To(Equal(calls + 1))
			Expect(breaker.State()).To(Equal(StateClosed))
		})

		It("admits concurrent calls while a half-open trial is in flight", func() {
			// Calls that begin before the first trial settles all observe the
			// half-open state; the single-trial guarantee is sequential only.
			var (
				failing int32 = 1

				entered = make(chan struct{}, 2)
				release = make(chan struct{})
			)

			b, err := New(
				func(context.Context, string) (string, error) {
					if atomic.LoadInt32(&failing) != 0 {
						return "", failure
					}

					entered <- struct{}{}
					<-release

					return "<delivered>", nil
				},
				func(context.Context, string) (string, error) {
					return "<fallback>", nil
				},
				Options{
					Name:         "<breaker>",
					MaxFailures:  3,
					ResetTimeout: resetDur,
				},
				logging.DiscardLogger{},
			)
			Expect(err).ShouldNot(HaveOccurred())

			for i := 0; i < 3; i++ {
				b.Invoke(ctx, "<req>") // nolint:errcheck
			}
			Expect(b.State()).To(Equal(StateOpen))

			time.Sleep(resetDur + 5*time.Millisecond)
			atomic.StoreInt32(&failing, 0)

			var g sync.WaitGroup
			g.Add(2)

			for i := 0; i < 2; i++ {
				go func() {
					defer g.Done()
					b.Invoke(ctx, "<req>") // nolint:errcheck
				}()
			}

			// Both calls reach the protected operation before either settles.
			for i := 0; i < 2; i++ {
				Eventually(entered).Should(Receive())
			}

			close(release)
			g.Wait()

			Expect(b.State()).To(Equal(StateClosed))
		})

		It("re-opens when the half-open trial fails", func() {
			trip()

			time.Sleep(resetDur + 5*time.Millisecond)

			_, err := breaker.Invoke(ctx, "<req>")

			Expect(err).To(MatchError(failure))
			Expect(breaker.State()).To(Equal(StateOpen))

			// Back on cooldown, the fallback serves again.
			res, err := breaker.Invoke(ctx, "<req>")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(res).To(Equal("<fallback>"))
		})
	})

	Describe("func State()", func() {
		It("reports open until the next call, even after the cooldown", func() {
			trip()

			time.Sleep(resetDur + 5*time.Millisecond)

			Expect(breaker.State()).To(Equal(StateOpen))
		})
	})
})
