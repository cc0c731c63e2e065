package parser

import (
	"strconv"
	"strings"
)

// ParseEvent runs the event grammar over one reassembled line:
//
//	line       <- concurrent / event times
//	concurrent <- time ': [CMS-concurrent-' [^:\]]+ (':' ws secs '/' secs ']' ws times)?
//	event      <- (time ': ')? '[' type detail? (':' ws)? ws event* ws usage ']' ws
//	detail     <- ws '(' ('System.gc()' / [^)]+) ')'
//	usage      <- sizes? (',' ws event)? (',' ws secs)?
//	sizes      <- (size arrow)? size '(' size ')'
//	size       <- digits ws 'K' ws
//	times      <- '[Times:' ws 'user=' secs ' sys=' secs ', real=' secs ']'
//
// The match does not have to consume the whole line. It returns false when
// no alternative matches.
func ParseEvent(line string) (*Node, bool) {
	p := &lineParser{s: line}

	n := &Node{}
	if p.concurrent(n) {
		return n, true
	}

	p.pos = 0
	n = &Node{}
	if p.event(n) && p.times(n) {
		return n, true
	}
	return nil, false
}

type lineParser struct {
	s   string
	pos int
}

func (p *lineParser) ws() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\f':
			p.pos++
		default:
			return
		}
	}
}

func (p *lineParser) lit(s string) bool {
	if strings.HasPrefix(p.s[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *lineParser) digits() (string, bool) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	return p.s[start:p.pos], p.pos > start
}

// number matches digits '.' digits and returns the literal.
func (p *lineParser) number() (string, bool) {
	start := p.pos
	if _, ok := p.digits(); !ok {
		p.pos = start
		return "", false
	}
	if !p.lit(".") {
		p.pos = start
		return "", false
	}
	if _, ok := p.digits(); !ok {
		p.pos = start
		return "", false
	}
	return p.s[start:p.pos], true
}

func (p *lineParser) timestamp() (int64, bool) {
	start := p.pos
	lit, ok := p.number()
	if !ok {
		return 0, false
	}
	ts, err := ParseTimestamp(lit)
	if err != nil {
		p.pos = start
		return 0, false
	}
	return ts, true
}

// duration matches a number of seconds with an optional " secs" suffix.
func (p *lineParser) duration() (float64, bool) {
	start := p.pos
	lit, ok := p.number()
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.pos = start
		return 0, false
	}
	p.lit(" secs")
	return d, true
}

func (p *lineParser) size() (int64, bool) {
	start := p.pos
	d, ok := p.digits()
	if !ok {
		return 0, false
	}
	p.ws()
	if !p.lit("K") {
		p.pos = start
		return 0, false
	}
	p.ws()
	kb, err := strconv.ParseInt(d, 10, 64)
	if err != nil {
		p.pos = start
		return 0, false
	}
	return kb, true
}

// arrow accepts the XML escaped form written to the VM output log as well
// as the plain form of a stand-alone gc log.
func (p *lineParser) arrow() bool {
	return p.lit("-&gt;") || p.lit("->")
}

func (p *lineParser) eventType() (string, bool) {
	for _, typ := range eventTypes {
		if p.lit(typ) {
			return typ, true
		}
	}
	return "", false
}

func (p *lineParser) event(n *Node) bool {
	start := p.pos

	if ts, ok := p.timestamp(); ok && p.lit(":") {
		p.ws()
		n.Timestamp = &ts
	} else {
		p.pos = start
		n.Timestamp = nil
	}

	if !p.lit("[") {
		p.pos = start
		return false
	}

	typ, ok := p.eventType()
	if !ok {
		p.pos = start
		return false
	}
	n.Type = typ
	p.detail(n)
	if p.lit(":") {
		p.ws()
	}
	p.ws()

	for {
		child := &Node{}
		if !p.event(child) {
			break
		}
		n.Children = append(n.Children, child)
	}

	p.ws()
	p.usage(n)

	if !p.lit("]") {
		p.pos = start
		return false
	}
	p.ws()
	return true
}

func (p *lineParser) detail(n *Node) {
	start := p.pos
	p.ws()
	if !p.lit("(") {
		p.pos = start
		return
	}

	from := p.pos
	if !p.lit("System.gc()") {
		for p.pos < len(p.s) && p.s[p.pos] != ')' {
			p.pos++
		}
		if p.pos == from {
			p.pos = start
			return
		}
	}
	detail := p.s[from:p.pos]

	if !p.lit(")") {
		p.pos = start
		return
	}
	n.Detail = detail
}

func (p *lineParser) usage(n *Node) {
	p.sizes(n)

	start := p.pos
	if p.lit(",") {
		p.ws()
		child := &Node{}
		if p.event(child) {
			n.Children = append(n.Children, child)
		} else {
			p.pos = start
		}
	}

	start = p.pos
	if p.lit(",") {
		p.ws()
		if d, ok := p.duration(); ok {
			n.Elapsed = &d
		} else {
			p.pos = start
		}
	}
}

func (p *lineParser) sizes(n *Node) {
	start := p.pos

	var before *int64
	if b, ok := p.size(); ok && p.arrow() {
		before = &b
	} else {
		p.pos = start
	}

	after, ok := p.size()
	if !ok || !p.lit("(") {
		p.pos = start
		return
	}
	capacity, ok := p.size()
	if !ok || !p.lit(")") {
		p.pos = start
		return
	}

	n.Before = before
	n.After = &after
	n.Capacity = &capacity
}

func (p *lineParser) times(n *Node) bool {
	start := p.pos
	fail := func() bool {
		p.pos = start
		return false
	}

	if !p.lit("[Times:") {
		return fail()
	}
	p.ws()
	if !p.lit("user=") {
		return fail()
	}
	user, ok := p.duration()
	if !ok || !p.lit(" sys=") {
		return fail()
	}
	sys, ok := p.duration()
	if !ok || !p.lit(", real=") {
		return fail()
	}
	real, ok := p.duration()
	if !ok || !p.lit("]") {
		return fail()
	}

	n.User, n.Sys, n.Real = &user, &sys, &real
	return true
}

func (p *lineParser) concurrent(n *Node) bool {
	ts, ok := p.timestamp()
	if !ok || !p.lit(":") {
		return false
	}
	p.ws()
	if !p.lit("[" + concurrentPrefix) {
		return false
	}

	from := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != ':' && p.s[p.pos] != ']' {
		p.pos++
	}
	if p.pos == from {
		return false
	}
	n.Type = concurrentPrefix + p.s[from:p.pos]
	n.Timestamp = &ts

	start := p.pos
	if !p.lit(":") {
		return true
	}
	p.ws()
	cpu, ok := p.duration()
	if !ok || !p.lit("/") {
		p.pos = start
		return true
	}
	wall, ok := p.duration()
	if !ok || !p.lit("]") {
		p.pos = start
		return true
	}
	p.ws()
	if !p.times(n) {
		p.pos = start
		return true
	}
	n.CMSCPU, n.CMSWall = &cpu, &wall
	return true
}
