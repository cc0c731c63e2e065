package parser

// BuildEvent flattens a classified tree into a GcEvent.
// Absent values default to zero.
func BuildEvent(root *Node, thread int, category Category) GcEvent {
	ev := GcEvent{
		Thread:      thread,
		Timestamp:   deref(root.Timestamp),
		Category:    category,
		PauseTime:   deref(root.Elapsed),
		UserTime:    deref(root.User),
		SysTime:     deref(root.Sys),
		RealTime:    deref(root.Real),
		CMSCPUTime:  deref(root.CMSCPU),
		CMSWallTime: deref(root.CMSWall),
		TypeDetail:  root.typeDetails(),
	}

	if category == CMSFinalRemark {
		if refs := root.find("weak refs processing"); refs != nil {
			ev.RefTime = deref(refs.Elapsed)
		}
	}

	return ev
}

func deref[T int64 | float64](v *T) T {
	if v == nil {
		return 0
	}
	return *v
}
