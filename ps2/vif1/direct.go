package vif1

import (
	"github.com/mogaika/vif1emu/ps2/gif"
	"github.com/mogaika/vif1emu/ps2/vif"
)

// cmdDirect forwards Imm quadwords to GIF. Called again on every
// stream chunk until Imm gets to zero, VPS stays set meanwhile.
func (v *Vif1) cmdDirect(s *vif.Stream) error {
	size := s.Available()

	if size != 0 && v.core.Imm != 0 && v.gif.TryAcquirePath(v.opts.DirectPath) {
		meta := gif.PacketMetadata{Path: v.opts.DirectPath}

		// Data that doesn't start on quadword boundary is collected
		// in our own buffer until full quadword is there
		if v.directQwordIndex != 0 || size < vif.QuadwordSize || !s.Aligned() {
			readAmount := vif.QuadwordSize - int(v.directQwordIndex)
			if readAmount > size {
				readAmount = size
			}
			if err := s.Read(v.directQword[v.directQwordIndex : int(v.directQwordIndex)+readAmount]); err != nil {
				return err
			}
			v.directQwordIndex += uint32(readAmount)

			if v.directQwordIndex == vif.QuadwordSize {
				processed := v.gif.ProcessPackets(v.directQword[:], meta)
				if processed != vif.QuadwordSize {
					return contractViolation("gif consumed %d bytes of buffered quadword", processed)
				}
				v.core.Imm--
				v.directQwordIndex = 0
				v.stats.DirectQuadwords++
			}
		}

		if v.directQwordIndex == 0 && s.Aligned() && v.core.Imm != 0 {
			amount := int(v.core.Imm) * vif.QuadwordSize
			if whole := s.Remaining() &^ (vif.QuadwordSize - 1); amount > whole {
				amount = whole
			}
			if amount != 0 {
				processed := v.gif.ProcessPackets(s.Direct()[:amount], meta)
				if processed < 0 || processed > amount || processed%vif.QuadwordSize != 0 {
					return contractViolation("gif consumed %d bytes of %d offered", processed, amount)
				}
				if err := s.Advance(processed); err != nil {
					return err
				}
				v.core.Imm -= uint32(processed / vif.QuadwordSize)
				v.stats.DirectQuadwords += uint64(processed / vif.QuadwordSize)
			}
		}
	}

	if v.core.Imm == 0 {
		v.core.Stat.SetVPS(vif.VPS_IDLE)
	} else {
		v.core.Stat.SetVPS(vif.VPS_WAITDATA)
	}
	return nil
}
