package vm

// execEffect materializes e's Event by resolving its Variables against
// the current context, stamps it with now + delay.as_micros(), and
// enqueues it into the invocation's emission list. If delay > 0 the
// caller must suspend this invocation until due.
func (inv *Invocation) execEffect(e *Effect, now int64) (due int64, suspend bool, err error) {
	delayMicros := e.Delay.AsMicros(inv.Ctx.Clock, inv.Ctx.FrameLength)
	due = now + int64(delayMicros)

	resolved, err := inv.resolveEvent(&e.Event, due)
	if err != nil {
		return 0, false, err
	}
	inv.Emitted = append(inv.Emitted, resolved)
	return due, delayMicros > 0, nil
}

func (inv *Invocation) resolveEvent(e *Event, due int64) (Resolved, error) {
	r := Resolved{Kind: e.Kind, DueMicros: due, LineIndex: inv.LineIndex}

	switch e.Kind {
	case EventMIDINoteOn, EventMIDINoteOff:
		dev, ch, err := inv.resolveDeviceChannel(e.Device, e.Channel)
		if err != nil {
			return r, err
		}
		note, err := inv.resolveInt(e.Note)
		if err != nil {
			return r, err
		}
		vel, err := inv.resolveInt(e.Velocity)
		if err != nil {
			return r, err
		}
		r.Device, r.Channel, r.Note, r.Velocity = dev, ch, note, vel

	case EventMIDIProgramChange:
		dev, ch, err := inv.resolveDeviceChannel(e.Device, e.Channel)
		if err != nil {
			return r, err
		}
		prog, err := inv.resolveInt(e.Program)
		if err != nil {
			return r, err
		}
		r.Device, r.Channel, r.Program = dev, ch, prog

	case EventMIDIControlChange:
		dev, ch, err := inv.resolveDeviceChannel(e.Device, e.Channel)
		if err != nil {
			return r, err
		}
		ctrl, err := inv.resolveInt(e.Control)
		if err != nil {
			return r, err
		}
		val, err := inv.resolveVar(e.Value)
		if err != nil {
			return r, err
		}
		r.Device, r.Channel, r.Control, r.Value = dev, ch, ctrl, val

	case EventMIDIAftertouch:
		dev, ch, err := inv.resolveDeviceChannel(e.Device, e.Channel)
		if err != nil {
			return r, err
		}
		note, err := inv.resolveInt(e.Note)
		if err != nil {
			return r, err
		}
		val, err := inv.resolveVar(e.Value)
		if err != nil {
			return r, err
		}
		r.Device, r.Channel, r.Note, r.Value = dev, ch, note, val

	case EventMIDIChannelPressure:
		dev, ch, err := inv.resolveDeviceChannel(e.Device, e.Channel)
		if err != nil {
			return r, err
		}
		val, err := inv.resolveVar(e.Value)
		if err != nil {
			return r, err
		}
		r.Device, r.Channel, r.Value = dev, ch, val

	case EventMIDIPitchBend:
		dev, ch, err := inv.resolveDeviceChannel(e.Device, e.Channel)
		if err != nil {
			return r, err
		}
		pitch, err := inv.resolveInt(e.Pitch)
		if err != nil {
			return r, err
		}
		r.Device, r.Channel, r.Pitch = dev, ch, pitch

	case EventMIDISysex:
		dev, err := inv.resolveString(e.Device)
		if err != nil {
			return r, err
		}
		r.Device, r.Sysex = dev, e.Sysex

	case EventOSC:
		dev, err := inv.resolveString(e.Device)
		if err != nil {
			return r, err
		}
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			v, err := inv.resolveVar(a)
			if err != nil {
				return r, err
			}
			args[i] = v
		}
		r.Device, r.Address, r.Args = dev, e.Address, args

	case EventDirt:
		dev, err := inv.resolveString(e.Device)
		if err != nil {
			return r, err
		}
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			v, err := inv.resolveVar(a)
			if err != nil {
				return r, err
			}
			args[i] = v
		}
		r.Device, r.Args, r.Keys = dev, args, e.Keys

	case EventTransportStart, EventTransportStop:
		// no extra fields to resolve

	default:
		return r, newError(ErrWrongType, "unknown event kind %d", e.Kind)
	}

	return r, nil
}
