package radio

import (
	"context"
	"fmt"
)

// addCommands exposes the receiver through the gobot Commander, so that a
// robot API can drive it.
func (r *Receiver) addCommands() {
	r.AddCommand("tune", func(params map[string]interface{}) interface{} {
		freq, err := frequencyParam(params)
		if err != nil {
			return err
		}
		return r.commandResult(r.Tune(freq))
	})

	r.AddCommand("seek", func(params map[string]interface{}) interface{} {
		dir := SeekUp
		if d, ok := params["direction"].(string); ok && d == "down" {
			dir = SeekDown
		}
		return r.commandResult(r.Seek(dir))
	})

	r.AddCommand("stop-seek", func(map[string]interface{}) interface{} {
		return r.commandResult(r.StopSeek())
	})

	r.AddCommand("volume", func(params map[string]interface{}) interface{} {
		v, ok := params["volume"].(float64)
		if !ok {
			return fmt.Errorf("%w: volume missing", ErrInvalidParam)
		}
		return r.commandResult(r.SetVolume(uint8(v)))
	})

	r.AddCommand("station", func(map[string]interface{}) interface{} {
		st := r.Station()
		return map[string]interface{}{
			"frequency": r.TunedFrequency(),
			"pi":        st.PI,
			"ps":        st.PS,
			"af":        st.AF,
		}
	})
}

// frequencyParam reads the "frequency" parameter, in kHz. JSON numbers
// arrive as float64.
func frequencyParam(params map[string]interface{}) (uint32, error) {
	switch v := params["frequency"].(type) {
	case float64:
		return uint32(v), nil
	case int:
		return uint32(v), nil
	case uint32:
		return v, nil
	}
	return 0, fmt.Errorf("%w: frequency missing", ErrInvalidParam)
}

func (r *Receiver) commandResult(p *Pending, err error) interface{} {
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StartTimeout)
	defer cancel()

	ev, err := p.Wait(ctx)
	if err != nil {
		return err
	}
	return map[string]interface{}{
		"status": ev.Status.String(),
		"value":  ev.Value,
	}
}
