package render

// animationKillCSS zeroes every animation and transition on the page via a
// universal selector override, and forces instant scrolling. Injected only
// when animation suppression is enabled.
const animationKillCSS = `*, *::before, *::after {
  animation-duration: 0s !important;
  animation-delay: 0s !important;
  transition-duration: 0s !important;
  transition-delay: 0s !important;
  scroll-behavior: auto !important;
}`

// animationOverrideJS replaces animation-frame scheduling so requested
// callbacks fire synchronously with a zero-valued timestamp, neutralises
// cancelAnimationFrame, and finishes any in-flight Web Animations API
// animations. Pages without WAAPI support are tolerated.
const animationOverrideJS = `(() => {
  window.requestAnimationFrame = (cb) => { cb(0); return 0; };
  window.cancelAnimationFrame = () => {};
  try {
    if (document.getAnimations) {
      document.getAnimations().forEach((a) => { try { a.finish(); } ` +
	`catch (e) {} });
    }
  } catch (e) {}
  return true;
})()`

// injectStyleJS appends a style element carrying the supplied CSS text.
// The CSS is passed through JSON encoding to survive quoting.
const injectStyleJS = `((css) => {
  const el = document.createElement('style');
  el.textContent = css;
  document.head.appendChild(el);
  return true;
})(%s)`
