package keyengine

// Context is the current derivation session: the 64-byte BIP-39 master
// seed (immutable for device uptime once resident) and the last
// requested child index. The dispatcher is the only caller allowed to
// mutate Idx, and only via SetIdx.
type Context struct {
	MasterSeed [64]byte
	Idx        uint32
}

// SetIdx sets the child index and returns ctx, mirroring the chained
// set_idx call the original firmware makes before every address or
// signature derivation.
func (ctx *Context) SetIdx(idx uint32) *Context {
	ctx.Idx = idx
	return ctx
}
