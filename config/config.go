// Package config parses the configuration keys consumed by CallControl and
// AnalogLine, in the same gopkg.in/ini.v1-backed Section().Key().MustXxx
// idiom D4rk4-tg2sip/go/settings.go uses.
package config

import (
	"time"

	"gopkg.in/ini.v1"

	"github.com/tg2sip/circuitcore/analogline"
	"github.com/tg2sip/circuitcore/circuit"
)

// Strategy parses the `strategy`/`strategy-restrict` keys into a packed
// circuit.Strategy word. strategy-restrict is ignored when the selector is
// Random.
func Strategy(sec *ini.Section) (circuit.Strategy, error) {
	sel, err := circuit.ParseSelector(sec.Key("strategy").MustString("increment"))
	if err != nil {
		return 0, err
	}
	var flags circuit.Flag
	if sel != circuit.Random {
		flags, err = circuit.ParseRestrict(sec.Key("strategy-restrict").String())
		if err != nil {
			return 0, err
		}
	}
	return circuit.NewStrategy(sel, flags), nil
}

// LineOptions parses the AnalogLine configuration keys, applying
// AnalogLine's documented defaults whenever a timer key is absent or
// negative.
func LineOptions(sec *ini.Section) analogline.Options {
	opts := analogline.DefaultOptions()

	opts.InbandDTMF = sec.Key("dtmfinband").MustBool(false)
	opts.AnswerOnPolarity = sec.Key("answer-on-polarity").MustBool(false)
	opts.HangupOnPolarity = sec.Key("hangup-on-polarity").MustBool(false)
	opts.PolarityControl = sec.Key("polaritycontrol").MustBool(false)
	opts.OutOfService = sec.Key("out-of-service").MustBool(false)
	opts.Connect = sec.Key("connect").MustBool(true)

	if raw := sec.Key("echocancel").String(); raw == "" {
		opts.EchoCancel = 0
	} else if sec.Key("echocancel").MustBool(false) {
		opts.EchoCancel = 1
	} else {
		opts.EchoCancel = -1
	}

	switch sec.Key("callsetup").MustString("after") {
	case "before":
		opts.CallSetup = analogline.CallSetupBefore
	case "none":
		opts.CallSetup = analogline.CallSetupNone
	default:
		opts.CallSetup = analogline.CallSetupAfter
	}

	opts.CallSetupTimeout = msOrDefault(sec, "callsetup-timeout", 2000)
	opts.RingTimeout = msOrDefault(sec, "ring-timeout", 10000)
	opts.AlarmTimeout = msOrDefault(sec, "alarm-timeout", 30000)
	opts.DelayDial = msOrDefault(sec, "delaydial", 2000)

	return opts
}

// msOrDefault reads a millisecond key, falling back to def when the
// supplied value is absent or negative.
func msOrDefault(sec *ini.Section, key string, def int) time.Duration {
	v := sec.Key(key).MustInt(def)
	if v < 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}
