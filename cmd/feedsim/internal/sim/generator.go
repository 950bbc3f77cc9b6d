// Package sim produces synthetic execution ticks in the broker wire format
// and publishes them to kafka, so the relay can run off-exchange.
package sim

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Clock and Rand are seams for deterministic tests; production uses the
// real implementations below.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type Rand interface {
	Intn(n int) int
	Float64() float64
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

type RealRand struct{ *rand.Rand }

func (r RealRand) Intn(n int) int   { return r.Rand.Intn(n) }
func (r RealRand) Float64() float64 { return r.Rand.Float64() }

// KafkaWriter is the producer seam; *kafka.Writer satisfies it.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// tickWire mirrors the H0STCNT0 execution payload. Numeric fields are
// strings on the wire.
type tickWire struct {
	Symbol     string `json:"MKSC_SHRN_ISCD"`
	Price      string `json:"STCK_PRPR"`
	Change     string `json:"PRDY_VRSS"`
	ChangeRate string `json:"PRDY_CTRT"`
	Volume     string `json:"ACML_VOL"`
	Time       string `json:"STCK_CNTG_HOUR"`
}

// symbolState is one symbol's random walk: current price drifts around the
// previous close, volume only accumulates.
type symbolState struct {
	prevClose int64
	price     int64
	volume    int64
}

type TickGenerator struct {
	logger  *zap.Logger
	writer  KafkaWriter
	symbols []string
	state   map[string]*symbolState
	rand    Rand
	clock   Clock
	period  time.Duration
}

func NewTickGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	basePrices map[string]int64,
	rnd Rand,
	clock Clock,
	period time.Duration,
) *TickGenerator {
	symbols := make([]string, 0, len(basePrices))
	state := make(map[string]*symbolState, len(basePrices))
	for sym, base := range basePrices {
		symbols = append(symbols, sym)
		state[sym] = &symbolState{prevClose: base, price: base}
	}
	return &TickGenerator{
		logger:  logger,
		writer:  writer,
		symbols: symbols,
		state:   state,
		rand:    rnd,
		clock:   clock,
		period:  period,
	}
}

func (g *TickGenerator) Run(ctx context.Context) {
	g.logger.Info("Generator Started", zap.Strings("symbols", g.symbols))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(g.symbols) == 0 {
				g.clock.Sleep(1 * time.Second)
				continue
			}

			symbol := g.symbols[g.rand.Intn(len(g.symbols))]
			payload := g.step(symbol)

			err := g.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(symbol), // Key ensures partition ordering
				Value: payload,
			})
			if err != nil {
				g.logger.Error("Kafka Write Error", zap.Error(err))
			}

			g.clock.Sleep(g.period)
		}
	}
}

// step advances one symbol's walk and returns the serialized tick.
func (g *TickGenerator) step(symbol string) []byte {
	st := g.state[symbol]

	// Walk in 100-won ticks, at most 5 up or down per step.
	move := (int64(g.rand.Float64()*10) - 5) * 100
	st.price += move
	if st.price < 100 {
		st.price = 100
	}
	st.volume += int64(g.rand.Intn(1000) + 1)

	change := st.price - st.prevClose
	rate := float64(change) / float64(st.prevClose) * 100

	wire := tickWire{
		Symbol:     symbol,
		Price:      strconv.FormatInt(st.price, 10),
		Change:     strconv.FormatInt(change, 10),
		ChangeRate: strconv.FormatFloat(rate, 'f', 2, 64),
		Volume:     strconv.FormatInt(st.volume, 10),
		Time:       g.clock.Now().Format("150405"),
	}
	payload, _ := json.Marshal(wire) // Error ignored for simplicity in loop
	return payload
}
