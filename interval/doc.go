/*Package interval implements the genomic-interval operations needed to
  restrict work to a region of interest: parsing of "chr:start-end" region
  strings, and interval-union lookups over BED files.
  (Note the 'union'.  Overlapping intervals are merged, not tracked
  separately.)
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.
*/
package interval
