// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

// garbageCollectMerged considers freeing the whole standard page that
// merged just freed it has produced. It is only ever called with a
// block that isRootPage(): the result of a free that merged all the
// way back up to an unsplit page. It never re-scans other pages that
// happen to also be fully free; a page only gets a chance to be
// collected at the moment it becomes whole again.
//
// A page is kept if freeing it would drop the total standard page
// count below KeepMinimum, or below KeepFactor times the number of
// pages currently in use.
func (ctx *Context) garbageCollectMerged(root *Block) {
	if uint(ctx.stats.NbStdPages) <= ctx.cfg.KeepMinimum {
		return
	}
	if uint(ctx.stats.NbStdPages) <= ctx.cfg.KeepFactor*uint(ctx.stats.NbStdUsed) {
		return
	}

	ctx.freeIdx.remove(ctx.log, root)
	ctx.stats.onRemoveStdPage()

	ctx.log.debugf("garbage collected a standard page")
}
