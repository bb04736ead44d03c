package console

import (
	"strings"

	"optable/motion"
)

func commands() map[string]command {
	return map[string]command{
		"status":      {help: "show restore, orientation, deformation and moving targets", max: 0, run: (*Console).status},
		"channels":    {help: "list every channel with value and limits", max: 0, run: (*Console).channels},
		"get":         {args: "<channel>", help: "print a channel value", min: 1, max: 1, run: (*Console).get},
		"limits":      {args: "<channel>", help: "print a channel's limits", min: 1, max: 1, run: (*Console).limits},
		"nudge":       {args: "<target> <dir> <delta>", help: "apply one delta to a joint or telescope", min: 3, max: 3, run: (*Console).nudge},
		"start":       {args: "<target> <dir>", help: "start continuous motion", min: 2, max: 2, run: (*Console).start},
		"stop":        {args: "[target]", help: "stop one target, or everything", max: 1, run: (*Console).stop},
		"stopall":     {help: "stop all continuous motion", max: 0, run: (*Console).stopAll},
		"save":        {args: "<slot> [name]", help: "store the current pose", min: 1, max: 2, run: (*Console).save},
		"load":        {args: "<slot>", help: "restore a stored pose", min: 1, max: 1, run: (*Console).load},
		"preset":      {args: "<name>", help: "restore a named preset", min: 1, max: 1, run: (*Console).preset},
		"presets":     {help: "list presets", max: 0, run: (*Console).presets},
		"clear":       {args: "<slot>", help: "empty an unlocked slot", min: 1, max: 1, run: (*Console).clear},
		"slots":       {help: "list position slots", max: 0, run: (*Console).slots},
		"details":     {args: "<slot>", help: "show a slot's stored values", min: 1, max: 1, run: (*Console).details},
		"reverse":     {args: "[on|off]", help: "show or set orientation reversal", max: 1, run: (*Console).reverse},
		"restore":     {help: "show the last restore report", max: 0, run: (*Console).lastRestore},
		"attach":      {args: "<accessory> <mount>", help: "attach an accessory to a mount point", min: 2, max: 2, run: (*Console).attach},
		"detach":      {args: "<accessory>", help: "detach an accessory", min: 1, max: 1, run: (*Console).detach},
		"move":        {args: "<accessory> <delta>", help: "slide an attached accessory along its rail", min: 2, max: 2, run: (*Console).move},
		"accessories": {help: "list accessories and where they are mounted", max: 0, run: (*Console).accessories},
	}
}

func (c *Console) status(_ []string) error {
	st := c.tbl.Status()
	c.printf("restoring:   %v\n", st.Restoring)
	c.printf("reversed:    %v\n", st.Reversed)
	c.printf("deformation: %.0f%%\n", st.Deformation)
	if len(st.Active) == 0 {
		c.printf("moving:      -\n")
	} else {
		c.printf("moving:      %s\n", strings.Join(st.Active, ", "))
	}
	return nil
}

func (c *Console) channels(_ []string) error {
	for _, name := range c.tbl.Channels() {
		v, err := c.tbl.GetCurrent(name)
		if err != nil {
			return err
		}
		l, err := c.tbl.GetLimits(name)
		if err != nil {
			return err
		}
		state := ""
		if !c.tbl.IsEnabled(name) {
			state = " (disabled)"
		}
		c.printf("  %-12s %9.3f  [%g, %g]%s\n", name, v, l.Min, l.Max, state)
	}
	return nil
}

func (c *Console) get(args []string) error {
	v, err := c.tbl.GetCurrent(args[0])
	if err != nil {
		return err
	}
	c.printf("%s = %.3f\n", args[0], v)
	return nil
}

func (c *Console) limits(args []string) error {
	l, err := c.tbl.GetLimits(args[0])
	if err != nil {
		return err
	}
	c.printf("%s: [%g, %g]\n", args[0], l.Min, l.Max)
	return nil
}

func (c *Console) nudge(args []string) error {
	dir, err := ParseDirection(args[1])
	if err != nil {
		return err
	}
	delta, err := parseFloat(args[2])
	if err != nil {
		return err
	}
	ok, err := c.tbl.Nudge(args[0], dir, delta)
	if err != nil {
		return err
	}
	if !ok {
		c.printf("%s: limit reached\n", args[0])
	}
	return nil
}

func (c *Console) start(args []string) error {
	dir, err := ParseDirection(args[1])
	if err != nil {
		return err
	}
	return c.tbl.StartContinuous(args[0], dir)
}

func (c *Console) stop(args []string) error {
	if len(args) == 0 {
		c.tbl.StopAll()
		return nil
	}
	return c.tbl.Stop(args[0])
}

func (c *Console) stopAll(_ []string) error {
	c.tbl.StopAll()
	return nil
}

func (c *Console) save(args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	if err := c.tbl.Save(slot, name); err != nil {
		return err
	}
	c.printf("saved slot %d\n", slot)
	return nil
}

func (c *Console) load(args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	return c.tbl.Load(slot, c.restored)
}

func (c *Console) preset(args []string) error {
	return c.tbl.LoadPreset(args[0], c.restored)
}

// restored runs on the scheduler, so it only logs
func (c *Console) restored(r motion.Report) {
	c.logger.Info("console: restore finished",
		"target", r.Target, "complete", r.Complete(), "limited", r.Limited, "outstanding", r.Outstanding)
}

func (c *Console) presets(_ []string) error {
	for _, name := range c.tbl.Presets() {
		c.printf("  %s\n", name)
	}
	return nil
}

func (c *Console) clear(args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	return c.tbl.Clear(slot)
}

func (c *Console) slots(_ []string) error {
	for _, s := range c.tbl.Slots() {
		name := s.Name
		if name == "" {
			name = "-"
		}
		lock := ""
		if s.Locked {
			lock = " (locked)"
		}
		c.printf("  %2d  %s%s\n", s.Index, name, lock)
	}
	return nil
}

func (c *Console) details(args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	d, err := c.tbl.Details(slot)
	if err != nil {
		return err
	}
	c.printf("%s\n", d)
	return nil
}

func (c *Console) reverse(args []string) error {
	if len(args) == 0 {
		c.printf("reversed: %v\n", c.tbl.Reversed())
		return nil
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	return c.tbl.SetReversed(on)
}

func (c *Console) lastRestore(_ []string) error {
	r := c.tbl.LastRestore()
	if r.Target == "" {
		c.printf("no restore yet\n")
		return nil
	}
	c.printf("target:      %s\n", r.Target)
	c.printf("complete:    %v (%v)\n", r.Complete(), r.Elapsed())
	c.printf("converged:   %s\n", strings.Join(r.Converged, ", "))
	if len(r.Limited) > 0 {
		c.printf("limited:     %s\n", strings.Join(r.Limited, ", "))
	}
	if len(r.Outstanding) > 0 {
		c.printf("outstanding: %s\n", strings.Join(r.Outstanding, ", "))
	}
	if r.TimedOut {
		c.printf("timed out\n")
	}
	return nil
}

func (c *Console) attach(args []string) error {
	return c.tbl.Attach(args[0], args[1])
}

func (c *Console) detach(args []string) error {
	return c.tbl.Detach(args[0])
}

func (c *Console) move(args []string) error {
	delta, err := parseFloat(args[1])
	if err != nil {
		return err
	}
	ok, err := c.tbl.MoveAccessory(args[0], delta)
	if err != nil {
		return err
	}
	if !ok {
		c.printf("%s: end of rail\n", args[0])
	}
	return nil
}

func (c *Console) accessories(_ []string) error {
	for _, a := range c.tbl.Accessories() {
		if a.Mount == "" {
			c.printf("  %-12s detached\n", a.Name)
			continue
		}
		c.printf("  %-12s %s (%s) at %.3f\n", a.Name, a.Mount, a.Side, a.Position)
	}
	return nil
}
