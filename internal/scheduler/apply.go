package scheduler

// apply is the single dispatch point for the inbound message algebra
// (spec §9's Open Question resolution: one sum type, one switch, no
// SchedulerControl-wrapping-a-sub-enum duplication).
func (s *Scheduler) apply(m Message, now int64) {
	switch m.Kind {
	case MsgSetTempo:
		if m.Tempo <= 0 {
			s.logf("scheduler: rejected SetTempo(%v): must be positive", m.Tempo)
			return
		}
		s.Clock.SetTempo(m.Tempo)

	case MsgTransportStart:
		for _, l := range s.Scene.Lines {
			l.startPlayhead()
			for _, ps := range l.Playheads {
				ps.LastTriggerMicros = now
			}
		}

	case MsgTransportStop:
		for _, l := range s.Scene.Lines {
			l.Playheads = nil
		}
		s.suspended = nil

	case MsgEnableFrames:
		s.withLine(m.Line, func(l *Line) { setEnabled(l, m.Indices, true) })

	case MsgDisableFrames:
		s.withLine(m.Line, func(l *Line) { setEnabled(l, m.Indices, false) })

	case MsgUploadScript:
		s.withFrame(m.Line, m.Frame, func(f *Frame) {
			f.Script = m.Script
			f.Program = m.Program
		})

	case MsgSetFrameName:
		s.withFrame(m.Line, m.Frame, func(f *Frame) {
			if m.Name != nil {
				f.Name = *m.Name
			} else {
				f.Name = ""
			}
		})

	case MsgSetScriptLanguage:
		s.withFrame(m.Line, m.Frame, func(f *Frame) { f.Language = m.Language })

	case MsgSetFrameRepetitions:
		s.withFrame(m.Line, m.Frame, func(f *Frame) {
			if m.Repetitions < 1 {
				s.logf("scheduler: rejected SetFrameRepetitions(%d): must be >= 1", m.Repetitions)
				return
			}
			f.Repetitions = m.Repetitions
		})

	case MsgInsertFrame:
		s.withLine(m.Line, func(l *Line) {
			pos := m.Frame
			if pos < 0 || pos > len(l.Frames) {
				s.logf("scheduler: rejected InsertFrame: index %d out of range", pos)
				return
			}
			f := NewFrame(m.Duration, m.Program)
			l.Frames = append(l.Frames, nil)
			copy(l.Frames[pos+1:], l.Frames[pos:])
			l.Frames[pos] = f
			l.onFrameInserted(pos)
			l.repair()
		})

	case MsgRemoveFrame:
		s.withLine(m.Line, func(l *Line) {
			pos := m.Frame
			if pos < 0 || pos >= len(l.Frames) {
				s.logf("scheduler: rejected RemoveFrame: index %d out of range", pos)
				return
			}
			if len(l.Frames) <= 1 {
				s.logf("scheduler: rejected RemoveFrame: line %d would become empty", m.Line)
				return
			}
			l.Frames = append(l.Frames[:pos], l.Frames[pos+1:]...)
			l.onFrameRemoved(pos)
			l.repair()
		})

	case MsgUpdateLineFrames:
		s.withLine(m.Line, func(l *Line) {
			if len(m.Durations) == 0 {
				return
			}
			n := len(m.Durations)
			newFrames := make([]*Frame, n)
			for i := 0; i < n; i++ {
				if i < len(l.Frames) {
					newFrames[i] = l.Frames[i]
				} else {
					newFrames[i] = NewFrame(m.Durations[i], nil)
				}
				newFrames[i].Duration = m.Durations[i]
			}
			l.Frames = newFrames
			l.repair()
		})

	case MsgAddLine:
		newLine := m.NewLine
		if newLine == nil {
			newLine = NewLine(NewFrame(1, nil))
		}
		s.Scene.Lines = append(s.Scene.Lines, newLine)

	case MsgRemoveLine:
		if m.Line < 0 || m.Line >= len(s.Scene.Lines) {
			s.logf("scheduler: rejected RemoveLine: index %d out of range", m.Line)
			return
		}
		s.Scene.Lines = append(s.Scene.Lines[:m.Line], s.Scene.Lines[m.Line+1:]...)

	case MsgSetLine:
		if m.Line < 0 || m.Line >= len(s.Scene.Lines) || m.NewLine == nil {
			s.logf("scheduler: rejected SetLine: index %d out of range", m.Line)
			return
		}
		s.Scene.Lines[m.Line] = m.NewLine

	case MsgSetLineStartFrame:
		s.withLine(m.Line, func(l *Line) { l.HasRange = true; l.StartFrame = m.StartFrame; l.repair() })

	case MsgSetLineEndFrame:
		s.withLine(m.Line, func(l *Line) { l.HasRange = true; l.EndFrame = m.EndFrame; l.repair() })

	case MsgSetLineLength:
		s.withLine(m.Line, func(l *Line) { l.HasCustomLoopLength = true; l.CustomLoopLength = m.Length })

	case MsgSetLineSpeedFactor:
		s.withLine(m.Line, func(l *Line) {
			if m.Speed <= 0 {
				s.logf("scheduler: rejected SetLineSpeedFactor(%v): must be positive", m.Speed)
				return
			}
			l.SpeedFactor = m.Speed
		})

	case MsgSetSceneLength:
		if m.Length <= 0 {
			s.logf("scheduler: rejected SetSceneLength(%v): must be positive", m.Length)
			return
		}
		s.Scene.LengthBeats = m.Length

	case MsgDuplicateFrameRange, MsgRemoveFramesMultiLine, MsgInsertDuplicatedBlocks:
		s.applyBulk(m)

	case MsgGetScene:
		s.reply(m, s.Scene)
	case MsgGetSnapshot:
		s.reply(m, s.snapshot())
	case MsgGetClock:
		s.reply(m, s.Clock.State())
	case MsgGetScript:
		s.withFrame(m.Line, m.Frame, func(f *Frame) { s.reply(m, f.Script) })

	default:
		s.logf("scheduler: rejected unknown message kind %d", m.Kind)
	}
}

func setEnabled(l *Line, indices []int, enabled bool) {
	for _, idx := range indices {
		if idx >= 0 && idx < len(l.Frames) {
			l.Frames[idx].Enabled = enabled
		}
	}
}

// applyBulk implements the three multi-range operations as one
// transaction each: every range is validated before any mutation is
// applied, so a batch either fully succeeds or leaves the scene
// untouched.
func (s *Scheduler) applyBulk(m Message) {
	switch m.Kind {
	case MsgDuplicateFrameRange:
		if !s.validateRanges(m.Ranges) {
			return
		}
		for _, r := range m.Ranges {
			l := s.Scene.Lines[r.Line]
			dup := make([]*Frame, r.End-r.Start+1)
			for i := range dup {
				cp := *l.Frames[r.Start+i]
				dup[i] = &cp
			}
			tail := append([]*Frame{}, l.Frames[r.End+1:]...)
			l.Frames = append(append(l.Frames[:r.End+1:r.End+1], dup...), tail...)
			l.repair()
		}

	case MsgRemoveFramesMultiLine:
		if !s.validateRanges(m.Ranges) {
			return
		}
		for _, r := range m.Ranges {
			l := s.Scene.Lines[r.Line]
			if len(l.Frames)-(r.End-r.Start+1) < 1 {
				s.logf("scheduler: rejected bulk remove: line %d would become empty", r.Line)
				return
			}
		}
		for _, r := range m.Ranges {
			l := s.Scene.Lines[r.Line]
			l.Frames = append(l.Frames[:r.Start], l.Frames[r.End+1:]...)
			for i := r.End; i >= r.Start; i-- {
				l.onFrameRemoved(i)
			}
			l.repair()
		}

	case MsgInsertDuplicatedBlocks:
		if !s.validateRanges(m.Ranges) {
			return
		}
		for _, r := range m.Ranges {
			l := s.Scene.Lines[r.Line]
			pos := len(l.Frames)
			block := make([]*Frame, r.End-r.Start+1)
			for i := range block {
				cp := *l.Frames[r.Start+i]
				block[i] = &cp
			}
			l.Frames = append(l.Frames, block...)
			for i := 0; i < len(block); i++ {
				l.onFrameInserted(pos + i)
			}
			l.repair()
		}
	}
}

func (s *Scheduler) validateRanges(ranges []FrameRange) bool {
	for _, r := range ranges {
		if r.Line < 0 || r.Line >= len(s.Scene.Lines) {
			s.logf("scheduler: rejected bulk operation: line %d out of range", r.Line)
			return false
		}
		l := s.Scene.Lines[r.Line]
		if r.Start < 0 || r.End >= len(l.Frames) || r.Start > r.End {
			s.logf("scheduler: rejected bulk operation: invalid range [%d,%d] on line %d", r.Start, r.End, r.Line)
			return false
		}
	}
	return true
}
