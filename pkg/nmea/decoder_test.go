package nmea

import (
	"fmt"
	"testing"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rmcPayload = "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"
	ggaPayload = "GPGGA,123520,4807.040,N,01131.002,E,1,08,0.9,545.4,M,46.9,M,,"
	gsaPayload = "GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1"
	gsvPayload = "GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45"
)

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X", payload, ck)
}

// feed pushes a whole string and returns the offsets at which Feed reported a commit
func feed(d *Decoder, s string) []int {
	var commits []int
	for i := 0; i < len(s); i++ {
		if d.Feed(s[i]) {
			commits = append(commits, i)
		}
	}
	return commits
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestDecoder() (*Decoder, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewDecoder(WithClock(clk.now)), clk
}

func TestFreshDecoderIsInvalid(t *testing.T) {
	d, _ := newTestDecoder()

	lat, lon, age := d.Position()
	assert.Equal(t, InvalidAngle, lat)
	assert.Equal(t, InvalidAngle, lon)
	assert.Equal(t, InvalidAge, age)

	date, tod, age := d.DateTime()
	assert.Equal(t, InvalidDate, date)
	assert.Equal(t, InvalidTime, tod)
	assert.Equal(t, InvalidAge, age)

	assert.Equal(t, InvalidSpeed, d.Speed())
	assert.False(t, d.GoodData())
	assert.False(t, d.Snapshot().HasPosition())
}

func TestCommitOnCharacterAfterChecksum(t *testing.T) {
	for _, payload := range []string{rmcPayload, ggaPayload, gsaPayload, gsvPayload} {
		d, _ := newTestDecoder()
		line := nmeaLine(payload)

		commits := feed(d, line+"\r\n")
		require.Len(t, commits, 1, payload)
		// The terminator right after the two hex digits
		assert.Equal(t, len(line), commits[0], payload)

		stats := d.Stats()
		assert.Equal(t, uint32(1), stats.GoodSentences)
		assert.Zero(t, stats.FailedChecksums)
		assert.Equal(t, uint64(len(line)+2), stats.Characters)
	}
}

func TestRMCMatchesReferenceParser(t *testing.T) {
	d, clk := newTestDecoder()
	line := nmeaLine(rmcPayload)

	sentence, err := gonmea.Parse(line)
	require.NoError(t, err)
	require.Equal(t, gonmea.TypeRMC, sentence.DataType())
	ref := sentence.(gonmea.RMC)

	feed(d, line+"\r\n")
	fix := d.Snapshot()

	assert.InDelta(t, ref.Latitude, float64(fix.Latitude)/1e6, 1e-6)
	assert.InDelta(t, ref.Longitude, float64(fix.Longitude)/1e6, 1e-6)
	assert.Equal(t, uint32(ref.Speed*100+0.5), fix.Speed)
	assert.Equal(t, uint32(ref.Course*100+0.5), fix.Course)
	assert.Equal(t, ref.Validity == gonmea.ValidRMC, fix.GoodData)

	assert.Equal(t, uint32(ref.Date.DD*10000+ref.Date.MM*100+ref.Date.YY), fix.Date)
	assert.Equal(t, uint32(ref.Time.Hour*1000000+ref.Time.Minute*10000+ref.Time.Second*100+ref.Time.Millisecond/10), fix.Time)

	assert.Equal(t, clk.t, fix.TimeFixAt)
	assert.Equal(t, clk.t, fix.PositionFixAt)

	lat, lon, age := d.Position()
	assert.Equal(t, int32(48117300), lat)
	assert.Equal(t, int32(11516667), lon)
	assert.Zero(t, age)

	clk.advance(1500 * time.Millisecond)
	_, _, age = d.Position()
	assert.Equal(t, 1500*time.Millisecond, age)

	date, tod, age := d.DateTime()
	assert.Equal(t, uint32(230394), date)
	assert.Equal(t, uint32(12351900), tod)
	assert.Equal(t, 1500*time.Millisecond, age)
}

func TestGGAMatchesReferenceParser(t *testing.T) {
	d, _ := newTestDecoder()
	line := nmeaLine(ggaPayload)

	sentence, err := gonmea.Parse(line)
	require.NoError(t, err)
	ref := sentence.(gonmea.GGA)

	feed(d, line+"\r\n")
	fix := d.Snapshot()

	assert.InDelta(t, ref.Latitude, float64(fix.Latitude)/1e6, 1e-6)
	assert.InDelta(t, ref.Longitude, float64(fix.Longitude)/1e6, 1e-6)
	assert.Equal(t, uint8(ref.NumSatellites), fix.SatsUsed)
	assert.Equal(t, uint32(ref.HDOP*100+0.5), fix.HDOP)
	assert.Equal(t, int32(ref.Altitude*100+0.5), fix.Altitude)
	assert.True(t, fix.GoodData)
	assert.False(t, fix.PositionFixAt.IsZero())

	// GGA does not carry the time into the fix timestamp
	assert.True(t, fix.TimeFixAt.IsZero())
}

func TestGSAAndGSVMatchReferenceParser(t *testing.T) {
	d, _ := newTestDecoder()

	gsaLine := nmeaLine(gsaPayload)
	sentence, err := gonmea.Parse(gsaLine)
	require.NoError(t, err)
	gsa := sentence.(gonmea.GSA)

	gsvLine := nmeaLine(gsvPayload)
	sentence, err = gonmea.Parse(gsvLine)
	require.NoError(t, err)
	gsv := sentence.(gonmea.GSV)

	feed(d, gsaLine+"\r\n"+gsvLine+"\r\n")

	fix := d.Snapshot()
	assert.Equal(t, uint16(gsa.PDOP*100+0.5), fix.PDOP)
	assert.Equal(t, Fix3D, fix.FixType)
	assert.Equal(t, gsa.FixType, fmt.Sprint(uint8(fix.FixType)))
	assert.Equal(t, uint8(gsv.NumberSVsInView), fix.SatsInView)
}

func TestCorruptedSentenceLeavesFixUntouched(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine(rmcPayload)+"\r\n")
	before := d.Snapshot()

	good := nmeaLine("GPRMC,123600,A,4808.000,N,01132.000,E,030.0,090.0,230394,003.1,W")
	// Flip one character inside the checksum covered span, keep the checksum
	idx := len("$GPRMC,123600,A,480")
	bad := good[:idx] + "9" + good[idx+1:]
	require.NotEqual(t, good, bad)

	commits := feed(d, bad+"\r\n")
	assert.Empty(t, commits)
	assert.Equal(t, before, d.Snapshot())
	assert.Equal(t, uint32(1), d.Stats().FailedChecksums)

	// A good sentence afterwards still commits, staged values of the bad one do not leak
	commits = feed(d, good+"\r\n")
	assert.Len(t, commits, 1)
	assert.Equal(t, int32(48133333), d.Snapshot().Latitude)
}

// corrupt flips the last payload character and keeps the checksum
func corrupt(line string) string {
	idx := len(line) - 4
	return line[:idx] + string(line[idx]^0x01) + line[idx+1:]
}

func TestRejectedPositionDoesNotReachLaterSentence(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine(rmcPayload)+"\r\n")
	before := d.Snapshot()

	bad := corrupt(nmeaLine("GPRMC,123600,A,1000.000,S,02000.000,W,030.0,090.0,230394,003.1,W"))
	assert.Empty(t, feed(d, bad+"\r\n"))

	// A valid GGA without a fix stages no coordinates
	assert.Len(t, feed(d, nmeaLine("GPGGA,123521,,,,,0,00,,,M,,M,,")+"\r\n"), 1)

	fix := d.Snapshot()
	assert.Equal(t, before.Latitude, fix.Latitude)
	assert.Equal(t, before.Longitude, fix.Longitude)
	assert.Equal(t, before.PositionFixAt, fix.PositionFixAt)
	assert.False(t, fix.GoodData)
}

func TestRejectedValidityDoesNotReachLaterSentence(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine(rmcPayload)+"\r\n")
	require.True(t, d.GoodData())

	bad := corrupt(nmeaLine("GPRMC,123600,V,4808.000,N,01132.000,E,030.0,090.0,230394,003.1,W"))
	assert.Empty(t, feed(d, bad+"\r\n"))

	// GSV carries no validity, it must not touch GoodData
	assert.Len(t, feed(d, nmeaLine(gsvPayload)+"\r\n"), 1)
	assert.True(t, d.GoodData())
	assert.Equal(t, int32(48117300), d.Snapshot().Latitude)
}

func TestCutOffSentenceDoesNotLeak(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine(rmcPayload)+"\r\n")
	before := d.Snapshot()

	// Cut off by '$' before its checksum, then an empty GGA
	stream := "$GPRMC,123600,A,1000.000,S,02000.000,W,0" + nmeaLine("GPGGA,123521,,,,,1,05,,,M,,M,,") + "\r\n"
	assert.Len(t, feed(d, stream), 1)

	fix := d.Snapshot()
	assert.Equal(t, before.Latitude, fix.Latitude)
	assert.Equal(t, before.Longitude, fix.Longitude)
	assert.Equal(t, uint8(5), fix.SatsUsed)
}

func TestEveryMutationIsRejected(t *testing.T) {
	line := nmeaLine(rmcPayload)

	for i := 1; i < len(line)-3; i++ {
		c := line[i]
		if c == ',' || c == '*' || c == '$' {
			continue
		}

		d, _ := newTestDecoder()
		mutated := line[:i] + string(c^0x01) + line[i+1:]
		if mutated[i] == ',' || mutated[i] == '*' || mutated[i] == '$' || mutated[i] == '\r' || mutated[i] == '\n' {
			continue
		}

		assert.Empty(t, feed(d, mutated+"\r\n"), "mutation at %d", i)
		assert.Equal(t, NewFix(), d.Snapshot(), "mutation at %d", i)
	}
}

func TestLowercaseChecksumAccepted(t *testing.T) {
	d, _ := newTestDecoder()
	// checksum of this payload is 0x3B
	line := "$GPGSA,A,2,04,05,,09,12,,,24,,,,,1.5,1.3,2.1*3b"

	assert.Len(t, feed(d, line+"\r\n"), 1)
	assert.Equal(t, Fix2D, d.Snapshot().FixType)
	assert.Equal(t, uint16(150), d.Snapshot().PDOP)
}

func TestUnknownSentenceIsNotCommitted(t *testing.T) {
	d, _ := newTestDecoder()
	line := nmeaLine("GPVTG,054.7,T,034.4,M,005.5,N,010.2,K")

	assert.Empty(t, feed(d, line+"\r\n"))
	assert.Equal(t, uint32(1), d.Stats().GoodSentences)
	assert.Equal(t, NewFix(), d.Snapshot())

	// Talker ids other than GP are not recognized
	assert.Empty(t, feed(d, nmeaLine("GNRMC"+rmcPayload[5:])+"\r\n"))
}

func TestHemispheres(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine("GPRMC,001500,A,3351.500,S,15112.000,W,000.0,000.0,010124,,")+"\r\n")

	fix := d.Snapshot()
	assert.Equal(t, int32(-33858333), fix.Latitude)
	assert.Equal(t, int32(-151200000), fix.Longitude)
	lat, lon := fix.FloatPosition()
	assert.InDelta(t, -33.858333, lat, 1e-6)
	assert.InDelta(t, -151.2, lon, 1e-6)
}

func TestInvalidRMCDoesNotLatchPosition(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine("GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")+"\r\n")

	fix := d.Snapshot()
	assert.False(t, fix.GoodData)
	assert.True(t, fix.PositionFixAt.IsZero())
	assert.False(t, fix.TimeFixAt.IsZero())
	_, _, age := d.Position()
	assert.Equal(t, InvalidAge, age)
}

func TestDrainingAccessors(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine(ggaPayload)+"\r\n"+nmeaLine(gsaPayload)+"\r\n"+nmeaLine(gsvPayload)+"\r\n")

	assert.Equal(t, int32(54540), d.Altitude())
	assert.Equal(t, uint32(90), d.HDOP())
	assert.Equal(t, uint8(8), d.SatsUsed())
	assert.Equal(t, uint8(8), d.SatsInView())
	assert.Equal(t, Fix3D, d.FixType())
	assert.Equal(t, uint16(250), d.PDOP())

	// Second read reports nothing new
	assert.Zero(t, d.Altitude())
	assert.Zero(t, d.HDOP())
	assert.Zero(t, d.SatsUsed())
	assert.Zero(t, d.SatsInView())
	assert.Zero(t, d.FixType())
	assert.Zero(t, d.PDOP())

	// Coordinates and speed are not drained
	lat, _, _ := d.Position()
	assert.Equal(t, int32(48117333), lat)
	lat, _, _ = d.Position()
	assert.Equal(t, int32(48117333), lat)

	d.ResetStatus()
	assert.Equal(t, InvalidSatellites, d.SatsUsed())
	assert.Equal(t, InvalidFixType, d.FixType())
	assert.Equal(t, InvalidPDOP, d.PDOP())
}

func TestGGACommitResetsStagedStatus(t *testing.T) {
	d, _ := newTestDecoder()
	feed(d, nmeaLine(ggaPayload)+"\r\n")
	assert.Equal(t, uint8(8), d.Snapshot().SatsUsed)

	// Empty fields are ignored, so the staged values of the last commit must not come back
	feed(d, nmeaLine("GPGGA,123521,4807.040,N,01131.002,E,0,,,,M,,M,,")+"\r\n")
	fix := d.Snapshot()
	assert.Zero(t, fix.SatsUsed)
	assert.Zero(t, fix.HDOP)
	assert.Zero(t, fix.Altitude)
	assert.False(t, fix.GoodData)
}

func TestOverlongTermIsTruncated(t *testing.T) {
	d, _ := newTestDecoder()
	line := nmeaLine("GPRMC,123519.000000000000000,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")

	assert.Len(t, feed(d, line+"\r\n"), 1)
	assert.Equal(t, uint32(12351900), d.Snapshot().Time)
}

func TestGarbageBetweenSentences(t *testing.T) {
	d, _ := newTestDecoder()
	stream := "\x00\xff,,*zz" + nmeaLine(rmcPayload) + "\r\n" + "noise" + nmeaLine(gsvPayload) + "\r\n"

	assert.Len(t, feed(d, stream), 2)
	assert.Equal(t, uint8(8), d.Snapshot().SatsInView)
}

func TestRestartMidSentence(t *testing.T) {
	d, _ := newTestDecoder()
	// A sentence cut off by a new '$' is dropped without a checksum failure
	stream := "$GPRMC,123519,A,48" + nmeaLine(rmcPayload) + "\r\n"

	assert.Len(t, feed(d, stream), 1)
	assert.Zero(t, d.Stats().FailedChecksums)
	assert.Equal(t, int32(48117300), d.Snapshot().Latitude)
}

func TestMidTerm(t *testing.T) {
	d, _ := newTestDecoder()
	assert.False(t, d.MidTerm())

	d.Feed('$')
	assert.False(t, d.MidTerm())
	d.Feed('G')
	assert.True(t, d.MidTerm())
	d.Feed(',')
	assert.False(t, d.MidTerm())
}

func TestTimeFixLatchedAtSentenceStart(t *testing.T) {
	d, clk := newTestDecoder()
	line := nmeaLine(rmcPayload) + "\r\n"
	start := clk.t

	d.Feed(line[0])
	for i := 1; i < len(line); i++ {
		clk.advance(time.Millisecond)
		d.Feed(line[i])
	}

	fix := d.Snapshot()
	assert.Equal(t, start, fix.TimeFixAt)
	// Position is latched when the latitude term completes
	assert.True(t, fix.PositionFixAt.After(start))
}
